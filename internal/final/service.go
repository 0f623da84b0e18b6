// Package final runs Final Jeopardy: the wagering phase, the single
// shared clue, and the resolution that ends the game. It arms itself off
// the board-exhaustion event; while a final round is active the regular
// round commands are ignored by the dispatcher.
package final

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/khuckins/trebekbot/internal/domain"
	"github.com/khuckins/trebekbot/internal/errors"
	"github.com/khuckins/trebekbot/internal/event"
	"github.com/khuckins/trebekbot/internal/jservice"
	"github.com/khuckins/trebekbot/internal/match"
	"github.com/khuckins/trebekbot/internal/reply"
	"github.com/khuckins/trebekbot/internal/schedule"
	"github.com/khuckins/trebekbot/internal/score"
	"github.com/khuckins/trebekbot/internal/store"
)

const (
	defaultSecondsToAnswer = 60
	maxClueAttempts        = 5
)

type Provider interface {
	FetchCategories(ctx context.Context, count int) ([]jservice.Category, error)
	FetchClue(ctx context.Context, categoryID, value, offset int) (jservice.Clue, error)
}

// Resolver maps a user ID to a display name.
type Resolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

type Config struct {
	Store     *store.Store
	Score     *score.Service
	Bus       *event.Bus
	Provider  Provider
	Resolver  Resolver
	Scheduler schedule.Scheduler

	SecondsToAnswer     int
	SimilarityThreshold float64

	RandIntn func(n int) int
}

type Service struct {
	st        *store.Store
	score     *score.Service
	bus       *event.Bus
	provider  Provider
	resolver  Resolver
	scheduler schedule.Scheduler

	seconds   int
	threshold float64
	randIntn  func(n int) int
}

func NewService(c Config) *Service {
	s := &Service{
		st:        c.Store,
		score:     c.Score,
		bus:       c.Bus,
		provider:  c.Provider,
		resolver:  c.Resolver,
		scheduler: c.Scheduler,
		seconds:   c.SecondsToAnswer,
		threshold: c.SimilarityThreshold,
		randIntn:  c.RandIntn,
	}
	if s.seconds <= 0 {
		s.seconds = defaultSecondsToAnswer
	}
	if s.threshold <= 0 {
		s.threshold = 0.5
	}
	if s.scheduler == nil {
		s.scheduler = schedule.NewTimer()
	}
	if s.randIntn == nil {
		s.randIntn = rand.Intn
	}
	return s
}

// Arm subscribes the service to the board-exhaustion hand-off.
func (s *Service) Arm() {
	s.bus.Subscribe(domain.EventNameBoardExhausted, func(ctx context.Context, e event.Event) error {
		return s.Begin(ctx, e.(domain.EventBoardExhausted).ChannelID)
	})
}

// IsActive reports whether a final round is underway in the channel.
func (s *Service) IsActive(ctx context.Context, channelID string) (bool, error) {
	return s.st.Exists(ctx, s.finalistsKey(channelID))
}

// Begin opens the final round: everyone with a positive score becomes a
// finalist and is invited to wager. With nobody in the black the game
// just ends.
func (s *Service) Begin(ctx context.Context, channelID string) error {
	scores, err := s.score.All(ctx)
	if err != nil {
		return err
	}

	finalists := make([]domain.Finalist, 0, len(scores))
	for userID, n := range scores {
		if n <= 0 {
			continue
		}
		name, err := s.resolver.DisplayName(ctx, userID)
		if err != nil {
			return err
		}
		finalists = append(finalists, domain.Finalist{UserID: userID, Name: name, Score: n})
	}
	if len(finalists) == 0 {
		s.bus.Publish(ctx, domain.EventGameEnded{ChannelID: channelID})
		return nil
	}
	sort.Slice(finalists, func(i, j int) bool {
		if finalists[i].Score != finalists[j].Score {
			return finalists[i].Score > finalists[j].Score
		}
		return finalists[i].UserID < finalists[j].UserID
	})

	cat, err := s.pickCategory(ctx)
	if err != nil {
		return err
	}

	if err := s.clearPhaseKeys(ctx, channelID, finalists); err != nil {
		return err
	}
	if err := s.st.SetJSON(ctx, s.categoryKey(channelID), cat); err != nil {
		return err
	}
	if err := s.st.SetJSON(ctx, s.finalistsKey(channelID), finalists); err != nil {
		return err
	}

	s.bus.Publish(ctx, domain.EventFinalRoundStarted{
		ChannelID: channelID,
		Category:  cat.Title,
		Finalists: finalists,
	})
	return nil
}

// SubmitWager records a finalist's wager. Wagers stay revisable until the
// last one lands, at which point the shared clue is issued in the same
// reply.
func (s *Service) SubmitWager(ctx context.Context, channelID, userID, userName string, amount int) (string, error) {
	finalists, active, err := s.finalists(ctx, channelID)
	if err != nil {
		return "", err
	}
	if !active {
		return "Hold your horses. There's no Final Jeopardy! in play.", nil
	}

	finalist, ok := findFinalist(finalists, userID)
	if !ok {
		return fmt.Sprintf("Sorry, %s, Final Jeopardy! is for finalists only.", userName), nil
	}

	issued, err := s.st.Exists(ctx, s.questionKey(channelID))
	if err != nil {
		return "", err
	}
	if issued {
		return fmt.Sprintf("Too late, %s. The clue is on the board; wagers are locked in.", userName), nil
	}

	if amount < 1 || amount > finalist.Score {
		return fmt.Sprintf("Nice try, %s. Your wager has to be between $1 and %s.",
			userName, reply.Currency(finalist.Score)), nil
	}

	if err := s.st.Set(ctx, s.wagerKey(channelID, userID), fmt.Sprint(amount)); err != nil {
		return "", err
	}

	allIn, err := s.allIn(ctx, channelID, finalists, s.wagerKey)
	if err != nil {
		return "", err
	}
	ack := fmt.Sprintf("%s wagers %s.", userName, reply.Currency(amount))
	if !allIn {
		return ack, nil
	}

	question, err := s.issueQuestion(ctx, channelID)
	if err != nil {
		return "", err
	}
	return ack + "\n" + question, nil
}

// SubmitAnswer records a finalist's single attempt at the final clue. The
// last answer in resolves the round on the spot.
func (s *Service) SubmitAnswer(ctx context.Context, channelID, userID, userName, text string) (handled bool, msg string, err error) {
	finalists, active, err := s.finalists(ctx, channelID)
	if err != nil {
		return false, "", err
	}
	if !active {
		return false, "", nil
	}

	var q domain.Question
	issued, err := s.st.GetJSON(ctx, s.questionKey(channelID), &q)
	if err != nil {
		return false, "", err
	}
	if !issued {
		return true, fmt.Sprintf("Patience, %s. Wagers first, answers later.", userName), nil
	}

	if _, ok := findFinalist(finalists, userID); !ok {
		return true, fmt.Sprintf("Sorry, %s, Final Jeopardy! is for finalists only.", userName), nil
	}

	wager, err := s.wager(ctx, channelID, userID)
	if err != nil {
		return false, "", err
	}

	delta := -wager
	if match.IsCorrect(q.Answer, text, s.threshold) && match.IsQuestionFormat(text) {
		delta = wager
	}
	if time.Now().After(q.ExpiresAt) {
		delta = -wager
	}

	answer := domain.FinalAnswer{UserID: userID, Answer: text, Delta: delta}
	claimed, err := s.st.SetNX(ctx, s.answerKey(channelID, userID), "", 0)
	if err != nil {
		return false, "", err
	}
	if !claimed {
		return true, fmt.Sprintf("You only get one shot at this, %s.", userName), nil
	}
	if err := s.st.SetJSON(ctx, s.answerKey(channelID, userID), answer); err != nil {
		return false, "", err
	}

	allIn, err := s.allIn(ctx, channelID, finalists, s.answerKey)
	if err != nil {
		return false, "", err
	}
	if !allIn {
		return true, fmt.Sprintf("Your answer is in, %s.", userName), nil
	}

	standings, err := s.resolve(ctx, channelID, finalists)
	if err != nil {
		return false, "", err
	}
	return true, reply.FinalResults(q.Answer, standings), nil
}

// expire closes the answer window: finalists who never answered forfeit
// their wagers. Identity is re-checked so a timer for an already-resolved
// round is a no-op.
func (s *Service) expire(ctx context.Context, channelID string, clueID int) {
	finalists, active, err := s.finalists(ctx, channelID)
	if err != nil {
		slog.ErrorContext(ctx, "final: expire lookup failed", "channel", channelID, "error", err)
		return
	}
	if !active {
		return
	}

	var q domain.Question
	issued, err := s.st.GetJSON(ctx, s.questionKey(channelID), &q)
	if err != nil || !issued || q.ID != clueID {
		return
	}

	standings, err := s.resolve(ctx, channelID, finalists)
	if err != nil {
		slog.ErrorContext(ctx, "final: resolve failed", "channel", channelID, "error", err)
		return
	}
	s.bus.Publish(ctx, domain.EventFinalRoundResolved{
		ChannelID: channelID,
		Answer:    q.Answer,
		Standings: standings,
	})
}

// resolve applies every wager outcome and wipes the game.
func (s *Service) resolve(ctx context.Context, channelID string, finalists []domain.Finalist) ([]domain.FinalStanding, error) {
	standings := make([]domain.FinalStanding, 0, len(finalists))
	for _, f := range finalists {
		wager, err := s.wager(ctx, channelID, f.UserID)
		if err != nil {
			return nil, err
		}

		delta := -wager // no answer forfeits the wager
		var answer domain.FinalAnswer
		ok, err := s.st.GetJSON(ctx, s.answerKey(channelID, f.UserID), &answer)
		if err != nil {
			return nil, err
		}
		if ok {
			delta = answer.Delta
		}

		total, err := s.score.Add(ctx, f.UserID, delta)
		if err != nil {
			return nil, err
		}
		standings = append(standings, domain.FinalStanding{
			Name:  f.Name,
			Wager: wager,
			Delta: delta,
			Total: total,
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		return standings[i].Total > standings[j].Total
	})

	// Game over: the next question starts from a clean slate.
	if err := s.st.Flush(ctx); err != nil {
		return nil, err
	}
	return standings, nil
}

func (s *Service) issueQuestion(ctx context.Context, channelID string) (string, error) {
	var cat jservice.Category
	if ok, err := s.st.GetJSON(ctx, s.categoryKey(channelID), &cat); err != nil {
		return "", err
	} else if !ok {
		return "", errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("final round has no category"))
	}

	clue, err := s.acquireClue(ctx, cat)
	if err != nil {
		return "", err
	}

	q := domain.Question{
		ID:            clue.ID,
		CategoryTitle: cat.Title,
		Text:          match.Scrub(clue.Question),
		Answer:        match.ScrubAnswer(clue.Answer),
		Airdate:       clue.Airdate,
		ExpiresAt:     time.Now().Add(time.Duration(s.seconds) * time.Second),
	}
	if err := s.st.SetJSON(ctx, s.questionKey(channelID), q); err != nil {
		return "", err
	}

	s.scheduler.Schedule(time.Until(q.ExpiresAt), func(ctx context.Context) {
		s.expire(ctx, channelID, q.ID)
	})

	return reply.FinalQuestion(cat.Title, q.Text, s.seconds), nil
}

func (s *Service) pickCategory(ctx context.Context) (jservice.Category, error) {
	for attempt := 0; attempt < maxClueAttempts; attempt++ {
		cats, err := s.provider.FetchCategories(ctx, 1)
		if err != nil {
			return jservice.Category{}, err
		}
		if len(cats) == 0 || strings.TrimSpace(cats[0].Title) == "" || cats[0].CluesCount == 0 {
			continue
		}
		return cats[0], nil
	}
	return jservice.Category{}, errors.New(errors.CodeResourceExhausted,
		errors.WithMessagef("no usable final category after %d draws", maxClueAttempts))
}

func (s *Service) acquireClue(ctx context.Context, cat jservice.Category) (jservice.Clue, error) {
	for attempt := 0; attempt < maxClueAttempts; attempt++ {
		offset := 0
		if cat.CluesCount > 0 {
			offset = s.randIntn(cat.CluesCount)
		}

		clue, err := s.provider.FetchClue(ctx, cat.ID, 0, offset)
		if errors.IsCode(err, errors.CodeNotFound) {
			continue
		}
		if err != nil {
			return jservice.Clue{}, err
		}
		if match.Scrub(clue.Question) != "" && strings.TrimSpace(clue.Answer) != "" {
			return clue, nil
		}
	}
	return jservice.Clue{}, errors.New(errors.CodeResourceExhausted,
		errors.WithMessagef("no usable final clue in category %d", cat.ID))
}

func (s *Service) finalists(ctx context.Context, channelID string) ([]domain.Finalist, bool, error) {
	var finalists []domain.Finalist
	ok, err := s.st.GetJSON(ctx, s.finalistsKey(channelID), &finalists)
	return finalists, ok, err
}

func (s *Service) wager(ctx context.Context, channelID, userID string) (int, error) {
	raw, ok, err := s.st.Get(ctx, s.wagerKey(channelID, userID))
	if err != nil || !ok {
		return 0, err
	}
	var n int
	if _, err := fmt.Sscan(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// allIn reports whether every finalist has a record under the given key.
func (s *Service) allIn(ctx context.Context, channelID string, finalists []domain.Finalist, key func(channelID, userID string) string) (bool, error) {
	for _, f := range finalists {
		ok, err := s.st.Exists(ctx, key(channelID, f.UserID))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) clearPhaseKeys(ctx context.Context, channelID string, finalists []domain.Finalist) error {
	keys := []string{s.questionKey(channelID)}
	for _, f := range finalists {
		keys = append(keys, s.wagerKey(channelID, f.UserID), s.answerKey(channelID, f.UserID))
	}
	return s.st.Del(ctx, keys...)
}

func findFinalist(finalists []domain.Finalist, userID string) (domain.Finalist, bool) {
	for _, f := range finalists {
		if f.UserID == userID {
			return f, true
		}
	}
	return domain.Finalist{}, false
}

func (s *Service) finalistsKey(channelID string) string {
	return s.st.Key("final", "finalists", channelID)
}

func (s *Service) categoryKey(channelID string) string {
	return s.st.Key("final", "category", channelID)
}

func (s *Service) questionKey(channelID string) string {
	return s.st.Key("final", "question", channelID)
}

func (s *Service) wagerKey(channelID, userID string) string {
	return s.st.Key("final", "wager", channelID, userID)
}

func (s *Service) answerKey(channelID, userID string) string {
	return s.st.Key("final", "answer", channelID, userID)
}
