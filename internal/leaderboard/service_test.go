package leaderboard_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khuckins/trebekbot/internal/leaderboard"
	"github.com/khuckins/trebekbot/internal/score"
	"github.com/khuckins/trebekbot/internal/store"
)

type fakeResolver struct {
	mu    sync.Mutex
	calls int
	names map[string]string
}

func (r *fakeResolver) DisplayName(_ context.Context, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if name, ok := r.names[userID]; ok {
		return name, nil
	}
	return userID, nil
}

type fixture struct {
	boards   *leaderboard.Service
	scores   *score.Service
	resolver *fakeResolver
	redis    *miniredis.Miniredis
}

func makeFixture(t *testing.T, names map[string]string) *fixture {
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })

	st := store.New(rc, "trebek")
	scores := score.NewService(score.Config{Store: st})
	resolver := &fakeResolver{names: names}

	return &fixture{
		boards: leaderboard.NewService(leaderboard.Config{
			Store:    st,
			Score:    scores,
			Resolver: resolver,
			CacheTTL: time.Minute,
		}),
		scores:   scores,
		resolver: resolver,
		redis:    rs,
	}
}

func TestTopAndBottom(t *testing.T) {
	f := makeFixture(t, map[string]string{"U1": "Sean", "U2": "Burt", "U3": "Turd"})
	ctx := context.Background()

	_, err := f.scores.Add(ctx, "U1", 1000)
	require.NoError(t, err)
	_, err = f.scores.Add(ctx, "U2", -400)
	require.NoError(t, err)
	_, err = f.scores.Add(ctx, "U3", 200)
	require.NoError(t, err)

	top, err := f.boards.Top(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Let's take a look at the top scores:\n\n"+
		"1. Sean: $1,000\n2. Turd: $200\n3. Burt: -$400", top)

	bottom, err := f.boards.Bottom(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Let's take a look at the bottom scores:\n\n"+
		"1. Burt: -$400\n2. Turd: $200\n3. Sean: $1,000", bottom)
}

func TestTop_Empty(t *testing.T) {
	f := makeFixture(t, nil)

	top, err := f.boards.Top(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "There are no scores yet!", top)
}

func TestTop_CachesRendering(t *testing.T) {
	f := makeFixture(t, map[string]string{"U1": "Sean"})
	ctx := context.Background()

	_, err := f.scores.Add(ctx, "U1", 600)
	require.NoError(t, err)

	first, err := f.boards.Top(ctx)
	require.NoError(t, err)

	// A score change inside the cache window is not reflected.
	_, err = f.scores.Add(ctx, "U1", 600)
	require.NoError(t, err)

	second, err := f.boards.Top(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.resolver.calls)

	f.redis.FastForward(2 * time.Minute)
	third, err := f.boards.Top(ctx)
	require.NoError(t, err)
	assert.Contains(t, third, "$1,200")
}

func TestTop_LimitsToTen(t *testing.T) {
	f := makeFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := f.scores.Add(ctx, fmt.Sprintf("U%02d", i), (i+1)*100)
		require.NoError(t, err)
	}

	top, err := f.boards.Top(ctx)
	require.NoError(t, err)
	assert.Contains(t, top, "10. U02: $300")
	assert.NotContains(t, top, "11.")
}

func TestStandings_BypassesCache(t *testing.T) {
	f := makeFixture(t, map[string]string{"U1": "Sean"})
	ctx := context.Background()

	_, err := f.scores.Add(ctx, "U1", 600)
	require.NoError(t, err)

	_, err = f.boards.Top(ctx)
	require.NoError(t, err)

	_, err = f.scores.Add(ctx, "U1", 600)
	require.NoError(t, err)

	standings, err := f.boards.Standings(ctx)
	require.NoError(t, err)
	assert.Contains(t, standings, "$1,200")
}
