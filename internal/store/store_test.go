package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/khuckins/trebekbot/internal/store"
)

func makeStore(t *testing.T) (*store.Store, *miniredis.Miniredis) {
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })

	return store.New(rc, "trebek"), rs
}

func TestStore_Key(t *testing.T) {
	s, _ := makeStore(t)
	require.Equal(t, "trebek:current_question:C1", s.Key("current_question", "C1"))
}

func TestStore_GetSet(t *testing.T) {
	s, _ := makeStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestStore_SetExExpires(t *testing.T) {
	s, rs := makeStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetEx(ctx, "shush", "true", 5*time.Second))
	ok, err := s.Exists(ctx, "shush")
	require.NoError(t, err)
	require.True(t, ok)

	rs.FastForward(6 * time.Second)

	ok, err = s.Exists(ctx, "shush")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_SetNXClaimsOnce(t *testing.T) {
	s, _ := makeStore(t)
	ctx := context.Background()

	first, err := s.SetNX(ctx, "marker", "true", time.Minute)
	require.NoError(t, err)
	require.True(t, first)

	second, err := s.SetNX(ctx, "marker", "true", time.Minute)
	require.NoError(t, err)
	require.False(t, second)
}

func TestStore_IncrBy(t *testing.T) {
	s, _ := makeStore(t)
	ctx := context.Background()

	n, err := s.IncrBy(ctx, "user_score:u1", 400)
	require.NoError(t, err)
	require.Equal(t, int64(400), n)

	n, err = s.IncrBy(ctx, "user_score:u1", -600)
	require.NoError(t, err)
	require.Equal(t, int64(-200), n)
}

func TestStore_Scan(t *testing.T) {
	s, _ := makeStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "user_score:u1", "100"))
	require.NoError(t, s.Set(ctx, "user_score:u2", "200"))
	require.NoError(t, s.Set(ctx, "other", "x"))

	keys, err := s.Scan(ctx, "user_score:*")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"user_score:u1", "user_score:u2"}, keys)
}

func TestStore_JSONRoundTrip(t *testing.T) {
	s, _ := makeStore(t)
	ctx := context.Background()

	type payload struct {
		Title string `json:"title"`
		Value int    `json:"value"`
	}

	require.NoError(t, s.SetJSON(ctx, "q", payload{Title: "History", Value: 400}))

	var got payload
	ok, err := s.GetJSON(ctx, "q", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload{Title: "History", Value: 400}, got)
}

func TestStore_Flush(t *testing.T) {
	s, _ := makeStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Flush(ctx))

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
