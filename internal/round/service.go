// Package round is the core game controller: it issues questions,
// adjudicates answers and closes the answer window. All round state lives
// in the store; concurrent webhook deliveries are serialized through
// atomic claim keys, never locks.
package round

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/khuckins/trebekbot/internal/board"
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
	defaultSecondsToAnswer = 30
	defaultThreshold       = 0.5
	defaultDoubleChance    = 0.1
	defaultValue           = 200

	// questionShushTTL throttles question issuance so racing "jeopardy me"
	// deliveries produce one clue, not several.
	questionShushTTL = 10 * time.Second
	// answerShushTTL throttles the no-round banter.
	answerShushTTL = 5 * time.Second

	maxClueAttempts = 5
)

type ClueProvider interface {
	FetchClue(ctx context.Context, categoryID, value, offset int) (jservice.Clue, error)
	FetchRandom(ctx context.Context) (jservice.Clue, error)
}

type Config struct {
	Store     *store.Store
	Board     *board.Service
	Score     *score.Service
	Bus       *event.Bus
	Provider  ClueProvider
	Scheduler schedule.Scheduler

	SecondsToAnswer     int
	SimilarityThreshold float64
	DailyDoubleChance   float64
	QuestionBlacklist   []string

	// RandFloat and RandIntn are swappable for tests.
	RandFloat func() float64
	RandIntn  func(n int) int
}

type Service struct {
	st        *store.Store
	board     *board.Service
	score     *score.Service
	bus       *event.Bus
	provider  ClueProvider
	scheduler schedule.Scheduler

	seconds      int
	threshold    float64
	doubleChance float64
	blacklist    []string

	randFloat func() float64
	randIntn  func(n int) int
}

func NewService(c Config) *Service {
	s := &Service{
		st:           c.Store,
		board:        c.Board,
		score:        c.Score,
		bus:          c.Bus,
		provider:     c.Provider,
		scheduler:    c.Scheduler,
		seconds:      c.SecondsToAnswer,
		threshold:    c.SimilarityThreshold,
		doubleChance: c.DailyDoubleChance,
		blacklist:    c.QuestionBlacklist,
		randFloat:    c.RandFloat,
		randIntn:     c.RandIntn,
	}
	if s.seconds <= 0 {
		s.seconds = defaultSecondsToAnswer
	}
	if s.threshold <= 0 {
		s.threshold = defaultThreshold
	}
	if s.doubleChance <= 0 {
		s.doubleChance = defaultDoubleChance
	}
	if s.scheduler == nil {
		s.scheduler = schedule.NewTimer()
	}
	if s.randFloat == nil {
		s.randFloat = rand.Float64
	}
	if s.randIntn == nil {
		s.randIntn = rand.Intn
	}
	return s
}

// SecondsToAnswer exposes the configured answer window length.
func (s *Service) SecondsToAnswer() int { return s.seconds }

// Current returns the channel's active question, if any.
func (s *Service) Current(ctx context.Context, channelID string) (domain.Question, bool, error) {
	var q domain.Question
	ok, err := s.st.GetJSON(ctx, s.questionKey(channelID), &q)
	return q, ok, err
}

// IssueRandom starts a round with a clue from the random pool. The board
// is untouched; this is the quick "jeopardy me" game.
func (s *Service) IssueRandom(ctx context.Context, channelID string) (string, error) {
	claimed, err := s.st.SetNX(ctx, s.shushQuestionKey(channelID), "1", questionShushTTL)
	if err != nil {
		return "", err
	}
	if !claimed {
		return "", nil
	}

	previousAnswer, err := s.sweepStale(ctx, channelID)
	if err != nil {
		return "", err
	}

	clue, err := s.acquireRandom(ctx)
	if err != nil {
		s.releaseShush(ctx, channelID)
		return "", err
	}

	q := s.buildQuestion(clue, "", false)
	return s.open(ctx, channelID, q, previousAnswer, "")
}

// IssueFromBoard starts a round with the requested category and value,
// consuming the slot from the board. A slot whose clues are all unusable
// falls back to a surprise clue from the random pool so the slot is never
// refunded.
func (s *Service) IssueFromBoard(ctx context.Context, channelID, categoryTitle string, value int) (string, error) {
	claimed, err := s.st.SetNX(ctx, s.shushQuestionKey(channelID), "1", questionShushTTL)
	if err != nil {
		return "", err
	}
	if !claimed {
		return "", nil
	}

	previousAnswer, err := s.sweepStale(ctx, channelID)
	if err != nil {
		return "", err
	}

	b, ok, err := s.board.Get(ctx, channelID)
	if err != nil {
		return "", err
	}
	if !ok {
		s.releaseShush(ctx, channelID)
		return reply.NoBoard(), nil
	}

	cat, exhausted, err := s.board.TakeValue(ctx, channelID, categoryTitle, value)
	if err != nil {
		s.releaseShush(ctx, channelID)
		switch {
		case errors.IsCode(err, errors.CodeNotFound):
			if _, findErr := s.board.FindCategory(ctx, channelID, categoryTitle); findErr != nil {
				return reply.NoSuchCategory(categoryTitle), nil
			}
			return reply.NoSuchValue(categoryTitle), nil
		default:
			return "", err
		}
	}

	if exhausted {
		if err := s.st.Set(ctx, s.handoffKey(channelID), "1"); err != nil {
			return "", err
		}
	}

	surprise := ""
	clue, err := s.acquireFromCategory(ctx, cat, value)
	if errors.IsCode(err, errors.CodeNotFound) {
		// Nothing usable in the slot; the archive owes us a clue anyway.
		surprise = "Surprise round!\n"
		clue, err = s.acquireRandom(ctx)
	}
	if err != nil {
		s.releaseShush(ctx, channelID)
		return "", err
	}
	clue.Value = &value

	dd, err := s.rollDailyDouble(ctx, b.ID)
	if err != nil {
		return "", err
	}

	q := s.buildQuestion(clue, b.ID, dd)
	q.CategoryTitle = cat.Title
	return s.open(ctx, channelID, q, previousAnswer, surprise)
}

// SubmitAnswer adjudicates one user's attempt at the active question.
func (s *Service) SubmitAnswer(ctx context.Context, channelID, userID, userName, text string) (string, error) {
	q, ok, err := s.Current(ctx, channelID)
	if err != nil {
		return "", err
	}
	if !ok {
		// The question may have just been resolved; a user spending a
		// second attempt on it still gets turned away by name.
		spent, err := s.attemptSpentOnLast(ctx, channelID, userID)
		if err != nil {
			return "", err
		}
		if spent {
			return reply.HadYourChance(userName), nil
		}

		claimed, err := s.st.SetNX(ctx, s.shushAnswerKey(channelID), "1", answerShushTTL)
		if err != nil {
			return "", err
		}
		if !claimed {
			return "", nil
		}
		return reply.NoRoundQuote(), nil
	}

	if time.Now().After(q.ExpiresAt) {
		// The timer lost the race; close the window here instead. The
		// reveal travels in this reply, so no expiration event fires.
		if err := s.close(ctx, channelID, q.ID); err != nil {
			return "", err
		}
		if err := s.handoffIfPending(ctx, channelID); err != nil {
			return "", err
		}
		return reply.TimeUp(q, s.seconds), nil
	}

	firstTry, err := s.st.SetNX(ctx, s.attemptKey(channelID, userID, q.ID), "1",
		time.Duration(s.seconds)*time.Second)
	if err != nil {
		return "", err
	}
	if !firstTry {
		return reply.HadYourChance(userName), nil
	}

	value := q.Value
	if q.DailyDouble {
		value *= 2
	}

	if !match.IsCorrect(q.Answer, text, s.threshold) {
		total, err := s.score.Add(ctx, userID, -value)
		if err != nil {
			return "", err
		}
		return reply.Wrong(total), nil
	}

	if !match.IsQuestionFormat(text) {
		total, err := s.score.Add(ctx, userID, -value)
		if err != nil {
			return "", err
		}
		return reply.NotQuestion(userName, total), nil
	}

	won, err := s.st.SetNX(ctx, s.answeredKey(channelID, q.ID), userID,
		time.Duration(s.seconds)*time.Second)
	if err != nil {
		return "", err
	}
	if !won {
		// A racing correct answer already took the clue.
		return "", nil
	}

	total, err := s.score.Add(ctx, userID, value)
	if err != nil {
		return "", err
	}
	if err := s.close(ctx, channelID, q.ID); err != nil {
		return "", err
	}
	if err := s.handoffIfPending(ctx, channelID); err != nil {
		return "", err
	}
	return reply.Correct(userName, total), nil
}

// resolve closes an expired question: announce via the bus, sweep state,
// and hand off to the final round when the board just ran dry.
func (s *Service) resolve(ctx context.Context, channelID string, q domain.Question) error {
	if err := s.close(ctx, channelID, q.ID); err != nil {
		return err
	}
	s.bus.Publish(ctx, domain.EventQuestionExpired{ChannelID: channelID, Question: q})
	return s.handoffIfPending(ctx, channelID)
}

// expire is the scheduled callback for the answer window. It re-validates
// identity against the stored question so a timer armed for a question
// that was already answered, or for a previous board generation, is a
// no-op.
func (s *Service) expire(ctx context.Context, channelID, boardID string, clueID int) {
	q, ok, err := s.Current(ctx, channelID)
	if err != nil {
		slog.ErrorContext(ctx, "round: expire lookup failed", "channel", channelID, "error", err)
		return
	}
	if !ok || q.ID != clueID || q.BoardID != boardID {
		return
	}

	if err := s.resolve(ctx, channelID, q); err != nil {
		slog.ErrorContext(ctx, "round: expire failed", "channel", channelID, "error", err)
	}
}

func (s *Service) open(ctx context.Context, channelID string, q domain.Question, previousAnswer, prefix string) (string, error) {
	if err := s.st.SetJSON(ctx, s.questionKey(channelID), q); err != nil {
		return "", err
	}

	s.scheduler.Schedule(time.Until(q.ExpiresAt), func(ctx context.Context) {
		s.expire(ctx, channelID, q.BoardID, q.ID)
	})

	return prefix + reply.Question(q, previousAnswer), nil
}

func (s *Service) close(ctx context.Context, channelID string, clueID int) error {
	if err := s.st.Del(ctx, s.questionKey(channelID), s.shushQuestionKey(channelID)); err != nil {
		return err
	}
	// Remember what just closed so spent attempts on it can be named.
	if err := s.st.SetEx(ctx, s.lastQuestionKey(channelID), fmt.Sprint(clueID),
		time.Duration(s.seconds)*time.Second); err != nil {
		return err
	}
	return s.st.SetEx(ctx, s.shushAnswerKey(channelID), "1", answerShushTTL)
}

// attemptSpentOnLast reports whether the user already burned their attempt
// on the most recently closed question.
func (s *Service) attemptSpentOnLast(ctx context.Context, channelID, userID string) (bool, error) {
	raw, ok, err := s.st.Get(ctx, s.lastQuestionKey(channelID))
	if err != nil || !ok {
		return false, err
	}
	var clueID int
	if _, err := fmt.Sscan(raw, &clueID); err != nil {
		return false, nil
	}
	return s.st.Exists(ctx, s.attemptKey(channelID, userID, clueID))
}

// sweepStale reveals and clears a question whose window closed but whose
// timer never fired, e.g. across a process restart.
func (s *Service) sweepStale(ctx context.Context, channelID string) (previousAnswer string, err error) {
	q, ok, err := s.Current(ctx, channelID)
	if err != nil || !ok {
		return "", err
	}
	if !time.Now().After(q.ExpiresAt) {
		return "", nil
	}
	if err := s.st.Del(ctx, s.questionKey(channelID)); err != nil {
		return "", err
	}
	return q.Answer, nil
}

func (s *Service) handoffIfPending(ctx context.Context, channelID string) error {
	pending, err := s.st.Exists(ctx, s.handoffKey(channelID))
	if err != nil {
		return err
	}
	if !pending {
		return nil
	}
	if err := s.st.Del(ctx, s.handoffKey(channelID)); err != nil {
		return err
	}
	s.bus.Publish(ctx, domain.EventBoardExhausted{ChannelID: channelID})
	return nil
}

func (s *Service) rollDailyDouble(ctx context.Context, boardID string) (bool, error) {
	if s.randFloat() >= s.doubleChance {
		return false, nil
	}
	// One daily double per board generation.
	return s.st.SetNX(ctx, s.st.Key("daily_double", boardID), "1", 0)
}

func (s *Service) buildQuestion(clue jservice.Clue, boardID string, dailyDouble bool) domain.Question {
	value := defaultValue
	if clue.Value != nil && *clue.Value > 0 {
		value = *clue.Value
	}

	return domain.Question{
		ID:            clue.ID,
		BoardID:       boardID,
		CategoryTitle: clue.Category.Title,
		Value:         value,
		Text:          match.Scrub(clue.Question),
		Answer:        match.ScrubAnswer(clue.Answer),
		Airdate:       clue.Airdate,
		DailyDouble:   dailyDouble,
		ExpiresAt:     time.Now().Add(time.Duration(s.seconds) * time.Second),
	}
}

func (s *Service) acquireRandom(ctx context.Context) (jservice.Clue, error) {
	for attempt := 0; attempt < maxClueAttempts; attempt++ {
		clue, err := s.provider.FetchRandom(ctx)
		if err != nil {
			return jservice.Clue{}, err
		}
		if s.usable(clue) {
			return clue, nil
		}
	}
	return jservice.Clue{}, errors.New(errors.CodeResourceExhausted,
		errors.WithMessagef("no usable clue after %d random draws", maxClueAttempts))
}

func (s *Service) acquireFromCategory(ctx context.Context, cat domain.Category, value int) (jservice.Clue, error) {
	for attempt := 0; attempt < maxClueAttempts; attempt++ {
		offset := 0
		if cat.CluesCount > 0 {
			offset = s.randIntn(cat.CluesCount)
		}

		clue, err := s.provider.FetchClue(ctx, cat.ID, value, offset)
		if errors.IsCode(err, errors.CodeNotFound) {
			continue
		}
		if err != nil {
			return jservice.Clue{}, err
		}
		if s.usable(clue) {
			return clue, nil
		}
	}
	return jservice.Clue{}, errors.New(errors.CodeNotFound,
		errors.WithMessagef("no usable clue in category %d for %d", cat.ID, value))
}

// usable filters out clues the archive left blank and clues that only
// make sense with the original broadcast media.
func (s *Service) usable(clue jservice.Clue) bool {
	text := match.Scrub(clue.Question)
	if text == "" || strings.TrimSpace(clue.Answer) == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, banned := range s.blacklist {
		if strings.Contains(lower, strings.ToLower(banned)) {
			return false
		}
	}
	return true
}

func (s *Service) releaseShush(ctx context.Context, channelID string) {
	if err := s.st.Del(ctx, s.shushQuestionKey(channelID)); err != nil {
		slog.ErrorContext(ctx, "round: release shush failed", "channel", channelID, "error", err)
	}
}

func (s *Service) questionKey(channelID string) string {
	return s.st.Key("current_question", channelID)
}

func (s *Service) shushQuestionKey(channelID string) string {
	return s.st.Key("shush", "question", channelID)
}

func (s *Service) shushAnswerKey(channelID string) string {
	return s.st.Key("shush", "answer", channelID)
}

func (s *Service) attemptKey(channelID, userID string, clueID int) string {
	return s.st.Key("user_answer", channelID, fmt.Sprint(clueID), userID)
}

func (s *Service) answeredKey(channelID string, clueID int) string {
	return s.st.Key("answered", channelID, fmt.Sprint(clueID))
}

func (s *Service) handoffKey(channelID string) string {
	return s.st.Key("handoff", channelID)
}

func (s *Service) lastQuestionKey(channelID string) string {
	return s.st.Key("last_question", channelID)
}
