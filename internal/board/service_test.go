package board_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khuckins/trebekbot/internal/board"
	"github.com/khuckins/trebekbot/internal/errors"
	"github.com/khuckins/trebekbot/internal/jservice"
	"github.com/khuckins/trebekbot/internal/store"
)

type fakeProvider struct {
	batches [][]jservice.Category
	calls   int
}

func (p *fakeProvider) FetchCategories(_ context.Context, _ int) ([]jservice.Category, error) {
	batch := p.batches[p.calls%len(p.batches)]
	p.calls++
	return batch, nil
}

func goodBatch() []jservice.Category {
	return []jservice.Category{
		{ID: 1, Title: "Potent Potables", CluesCount: 10},
		{ID: 2, Title: "State Capitals", CluesCount: 8},
	}
}

func makeService(t *testing.T, p board.Provider) *board.Service {
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })

	return board.NewService(board.Config{
		Store:         store.New(rc, "trebek"),
		Provider:      p,
		CategoryCount: 2,
	})
}

func TestGetOrCreate(t *testing.T) {
	p := &fakeProvider{batches: [][]jservice.Category{goodBatch()}}
	s := makeService(t, p)
	ctx := context.Background()

	b, err := s.GetOrCreate(ctx, "C1")
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)
	require.Len(t, b.Categories, 2)
	assert.Equal(t, "Potent Potables", b.Categories[0].Title)
	assert.Equal(t, []int{200, 400, 600, 800, 1000}, b.Categories[0].Values)

	// Second call returns the stored board, same generation ID.
	again, err := s.GetOrCreate(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)
	assert.Equal(t, 1, p.calls)
}

func TestGetOrCreate_ResamplesUnusableCategories(t *testing.T) {
	p := &fakeProvider{batches: [][]jservice.Category{
		{{ID: 1, Title: "", CluesCount: 10}, {ID: 2, Title: "Ponies", CluesCount: 5}},
		goodBatch(),
	}}
	s := makeService(t, p)

	b, err := s.GetOrCreate(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, b.Categories, 2)
	assert.Equal(t, 2, p.calls)
}

func TestGetOrCreate_GivesUpAfterBoundedAttempts(t *testing.T) {
	p := &fakeProvider{batches: [][]jservice.Category{
		{{ID: 1, Title: "Empty", CluesCount: 0}},
	}}
	s := makeService(t, p)

	_, err := s.GetOrCreate(context.Background(), "C1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeResourceExhausted))
	assert.Equal(t, 3, p.calls)
}

func TestFindCategory(t *testing.T) {
	s := makeService(t, &fakeProvider{batches: [][]jservice.Category{goodBatch()}})
	ctx := context.Background()

	_, err := s.FindCategory(ctx, "C1", "state capitals")
	assert.True(t, errors.IsCode(err, errors.CodeFailedPrecondition))

	_, err = s.GetOrCreate(ctx, "C1")
	require.NoError(t, err)

	c, err := s.FindCategory(ctx, "C1", "state capitals")
	require.NoError(t, err)
	assert.Equal(t, 2, c.ID)

	_, err = s.FindCategory(ctx, "C1", "Sharp Things")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestTakeValue(t *testing.T) {
	s := makeService(t, &fakeProvider{batches: [][]jservice.Category{goodBatch()}})
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, "C1")
	require.NoError(t, err)

	c, exhausted, err := s.TakeValue(ctx, "C1", "POTENT POTABLES", 600)
	require.NoError(t, err)
	assert.False(t, exhausted)
	assert.Equal(t, []int{200, 400, 800, 1000}, c.Values)

	// The taken value is gone.
	_, _, err = s.TakeValue(ctx, "C1", "Potent Potables", 600)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	// So is any value never on the ladder.
	_, _, err = s.TakeValue(ctx, "C1", "Potent Potables", 350)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestTakeValue_ExhaustsBoard(t *testing.T) {
	s := makeService(t, &fakeProvider{batches: [][]jservice.Category{goodBatch()}})
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, "C1")
	require.NoError(t, err)

	values := []int{200, 400, 600, 800, 1000}
	for _, v := range values {
		_, exhausted, err := s.TakeValue(ctx, "C1", "Potent Potables", v)
		require.NoError(t, err)
		assert.False(t, exhausted)
	}

	// The emptied category is off the board.
	_, err = s.FindCategory(ctx, "C1", "Potent Potables")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	for i, v := range values {
		_, exhausted, err := s.TakeValue(ctx, "C1", "State Capitals", v)
		require.NoError(t, err)
		assert.Equal(t, i == len(values)-1, exhausted)
	}

	// The board is gone entirely.
	_, ok, err := s.Get(ctx, "C1")
	require.NoError(t, err)
	assert.False(t, ok)
}
