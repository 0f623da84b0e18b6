package final_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khuckins/trebekbot/internal/domain"
	"github.com/khuckins/trebekbot/internal/event"
	"github.com/khuckins/trebekbot/internal/final"
	"github.com/khuckins/trebekbot/internal/jservice"
	"github.com/khuckins/trebekbot/internal/schedule"
	"github.com/khuckins/trebekbot/internal/score"
	"github.com/khuckins/trebekbot/internal/store"
)

type fakeProvider struct {
	category jservice.Category
	clue     jservice.Clue
}

func (p *fakeProvider) FetchCategories(context.Context, int) ([]jservice.Category, error) {
	return []jservice.Category{p.category}, nil
}

func (p *fakeProvider) FetchClue(context.Context, int, int, int) (jservice.Clue, error) {
	return p.clue, nil
}

type fakeResolver struct{ names map[string]string }

func (r *fakeResolver) DisplayName(_ context.Context, userID string) (string, error) {
	if name, ok := r.names[userID]; ok {
		return name, nil
	}
	return userID, nil
}

type manualScheduler struct {
	fns []func(ctx context.Context)
}

func (m *manualScheduler) Schedule(_ time.Duration, fn func(ctx context.Context)) schedule.Handle {
	m.fns = append(m.fns, fn)
	return noopHandle{}
}

func (m *manualScheduler) fire() {
	fns := m.fns
	m.fns = nil
	for _, fn := range fns {
		fn(context.Background())
	}
}

type noopHandle struct{}

func (noopHandle) Cancel() bool { return false }

type fixture struct {
	final     *final.Service
	scores    *score.Service
	store     *store.Store
	bus       *event.Bus
	scheduler *manualScheduler
}

func intp(n int) *int { return &n }

func makeFixture(t *testing.T) *fixture {
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })

	st := store.New(rc, "trebek")
	bus := event.NewBus()
	t.Cleanup(bus.Stop)
	scores := score.NewService(score.Config{Store: st})
	scheduler := &manualScheduler{}

	provider := &fakeProvider{
		category: jservice.Category{ID: 42, Title: "Potent Potables", CluesCount: 6},
		clue: jservice.Clue{
			ID:       555,
			Question: "A fortified wine named for a Portuguese city",
			Answer:   "port",
			Value:    intp(0),
			Category: jservice.Category{ID: 42, Title: "Potent Potables"},
		},
	}

	svc := final.NewService(final.Config{
		Store:           st,
		Score:           scores,
		Bus:             bus,
		Provider:        provider,
		Resolver:        &fakeResolver{names: map[string]string{"U1": "Sean", "U2": "Burt"}},
		Scheduler:       scheduler,
		SecondsToAnswer: 60,
		RandIntn:        func(int) int { return 0 },
	})

	return &fixture{final: svc, scores: scores, store: st, bus: bus, scheduler: scheduler}
}

func seedScores(t *testing.T, f *fixture, scores map[string]int) {
	t.Helper()
	for userID, n := range scores {
		_, err := f.scores.Add(context.Background(), userID, n)
		require.NoError(t, err)
	}
}

func beginRound(t *testing.T, f *fixture) domain.EventFinalRoundStarted {
	t.Helper()

	started := make(chan domain.EventFinalRoundStarted, 1)
	f.bus.Subscribe(domain.EventNameFinalRoundStarted, func(_ context.Context, e event.Event) error {
		started <- e.(domain.EventFinalRoundStarted)
		return nil
	})

	require.NoError(t, f.final.Begin(context.Background(), "C1"))

	select {
	case e := <-started:
		return e
	case <-time.After(time.Second):
		t.Fatal("final round never announced")
		return domain.EventFinalRoundStarted{}
	}
}

func TestBegin(t *testing.T) {
	f := makeFixture(t)
	seedScores(t, f, map[string]int{"U1": 800, "U2": 1200, "U3": -400})

	e := beginRound(t, f)
	assert.Equal(t, "C1", e.ChannelID)
	assert.Equal(t, "Potent Potables", e.Category)
	// Sorted by score, and the player in the red is out.
	require.Len(t, e.Finalists, 2)
	assert.Equal(t, domain.Finalist{UserID: "U2", Name: "Burt", Score: 1200}, e.Finalists[0])
	assert.Equal(t, domain.Finalist{UserID: "U1", Name: "Sean", Score: 800}, e.Finalists[1])

	active, err := f.final.IsActive(context.Background(), "C1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestBegin_NobodyInTheBlackEndsGame(t *testing.T) {
	f := makeFixture(t)
	seedScores(t, f, map[string]int{"U1": -400})

	ended := make(chan struct{}, 1)
	f.bus.Subscribe(domain.EventNameGameEnded, func(context.Context, event.Event) error {
		ended <- struct{}{}
		return nil
	})

	require.NoError(t, f.final.Begin(context.Background(), "C1"))

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("game end never announced")
	}

	active, err := f.final.IsActive(context.Background(), "C1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSubmitWager(t *testing.T) {
	f := makeFixture(t)
	seedScores(t, f, map[string]int{"U1": 800, "U2": 1200})
	beginRound(t, f)
	ctx := context.Background()

	// Not a finalist.
	msg, err := f.final.SubmitWager(ctx, "C1", "U9", "Turd", 100)
	require.NoError(t, err)
	assert.Contains(t, msg, "finalists only")

	// Out of range.
	msg, err = f.final.SubmitWager(ctx, "C1", "U1", "Sean", 900)
	require.NoError(t, err)
	assert.Contains(t, msg, "between $1 and $800")

	msg, err = f.final.SubmitWager(ctx, "C1", "U1", "Sean", 0)
	require.NoError(t, err)
	assert.Contains(t, msg, "between $1 and $800")

	// A valid wager, then a revision.
	msg, err = f.final.SubmitWager(ctx, "C1", "U1", "Sean", 100)
	require.NoError(t, err)
	assert.Equal(t, "Sean wagers $100.", msg)

	msg, err = f.final.SubmitWager(ctx, "C1", "U1", "Sean", 500)
	require.NoError(t, err)
	assert.Equal(t, "Sean wagers $500.", msg)

	// The last wager brings out the clue.
	msg, err = f.final.SubmitWager(ctx, "C1", "U2", "Burt", 1000)
	require.NoError(t, err)
	assert.Contains(t, msg, "Burt wagers $1,000.")
	assert.Contains(t, msg, "A fortified wine named for a Portuguese city")
	require.Len(t, f.scheduler.fns, 1)

	// Wagers are locked once the clue is up.
	msg, err = f.final.SubmitWager(ctx, "C1", "U1", "Sean", 800)
	require.NoError(t, err)
	assert.Contains(t, msg, "wagers are locked in")
}

func TestSubmitWager_NoRound(t *testing.T) {
	f := makeFixture(t)

	msg, err := f.final.SubmitWager(context.Background(), "C1", "U1", "Sean", 100)
	require.NoError(t, err)
	assert.Contains(t, msg, "no Final Jeopardy!")
}

func TestSubmitAnswer(t *testing.T) {
	f := makeFixture(t)
	seedScores(t, f, map[string]int{"U1": 800, "U2": 1200})
	beginRound(t, f)
	ctx := context.Background()

	// Answers before the clue is up are turned away.
	handled, msg, err := f.final.SubmitAnswer(ctx, "C1", "U1", "Sean", "what is port?")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, msg, "Wagers first")

	_, err = f.final.SubmitWager(ctx, "C1", "U1", "Sean", 500)
	require.NoError(t, err)
	_, err = f.final.SubmitWager(ctx, "C1", "U2", "Burt", 1000)
	require.NoError(t, err)

	handled, msg, err = f.final.SubmitAnswer(ctx, "C1", "U1", "Sean", "what is port?")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "Your answer is in, Sean.", msg)

	// One attempt each.
	handled, msg, err = f.final.SubmitAnswer(ctx, "C1", "U1", "Sean", "what is madeira?")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, msg, "one shot")

	// The last answer resolves the round on the spot.
	handled, msg, err = f.final.SubmitAnswer(ctx, "C1", "U2", "Burt", "what is sherry?")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, msg, "The correct answer was `port`")
	assert.Contains(t, msg, "1. Sean: $1,300 (wagered $500)")
	assert.Contains(t, msg, "2. Burt: $200 (wagered $1,000)")
	assert.Contains(t, msg, "Goodnight everybody")

	// Resolution wiped the game.
	active, err := f.final.IsActive(ctx, "C1")
	require.NoError(t, err)
	assert.False(t, active)
	all, err := f.scores.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmitAnswer_InactiveIsNotHandled(t *testing.T) {
	f := makeFixture(t)

	handled, msg, err := f.final.SubmitAnswer(context.Background(), "C1", "U1", "Sean", "what is port?")
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, msg)
}

func TestExpire_UnansweredForfeitWagers(t *testing.T) {
	f := makeFixture(t)
	seedScores(t, f, map[string]int{"U1": 800, "U2": 1200})
	beginRound(t, f)
	ctx := context.Background()

	resolved := make(chan domain.EventFinalRoundResolved, 1)
	f.bus.Subscribe(domain.EventNameFinalRoundResolved, func(_ context.Context, e event.Event) error {
		resolved <- e.(domain.EventFinalRoundResolved)
		return nil
	})

	_, err := f.final.SubmitWager(ctx, "C1", "U1", "Sean", 500)
	require.NoError(t, err)
	_, err = f.final.SubmitWager(ctx, "C1", "U2", "Burt", 1000)
	require.NoError(t, err)

	_, _, err = f.final.SubmitAnswer(ctx, "C1", "U1", "Sean", "what is port?")
	require.NoError(t, err)

	f.scheduler.fire()

	select {
	case e := <-resolved:
		assert.Equal(t, "port", e.Answer)
		require.Len(t, e.Standings, 2)
		assert.Equal(t, domain.FinalStanding{Name: "Sean", Wager: 500, Delta: 500, Total: 1300}, e.Standings[0])
		assert.Equal(t, domain.FinalStanding{Name: "Burt", Wager: 1000, Delta: -1000, Total: 200}, e.Standings[1])
	case <-time.After(time.Second):
		t.Fatal("resolution never announced")
	}
}

func TestExpire_AfterResolutionIsNoOp(t *testing.T) {
	f := makeFixture(t)
	seedScores(t, f, map[string]int{"U1": 800})
	beginRound(t, f)
	ctx := context.Background()

	resolved := make(chan struct{}, 1)
	f.bus.Subscribe(domain.EventNameFinalRoundResolved, func(context.Context, event.Event) error {
		resolved <- struct{}{}
		return nil
	})

	_, err := f.final.SubmitWager(ctx, "C1", "U1", "Sean", 500)
	require.NoError(t, err)
	_, _, err = f.final.SubmitAnswer(ctx, "C1", "U1", "Sean", "what is port?")
	require.NoError(t, err)

	f.scheduler.fire()
	f.bus.Stop()

	select {
	case <-resolved:
		t.Fatal("stale timer resolved a finished round")
	default:
	}
}
