package api

import (
	"context"

	"github.com/khuckins/trebekbot/internal/domain"
	"github.com/khuckins/trebekbot/internal/event"
	"github.com/khuckins/trebekbot/internal/leaderboard"
	"github.com/khuckins/trebekbot/internal/reply"
	"github.com/khuckins/trebekbot/internal/score"
	"github.com/khuckins/trebekbot/internal/slack"
)

// Notifier pushes the announcements that happen outside a webhook
// request/response cycle, via the incoming webhook.
type Notifier struct {
	slack  *slack.Client
	boards *leaderboard.Service
	score  *score.Service

	secondsToAnswer int
}

type NotifierConfig struct {
	Bus         *event.Bus
	Slack       *slack.Client
	Leaderboard *leaderboard.Service
	Score       *score.Service

	SecondsToAnswer int
	FinalEnabled    bool
}

func NewNotifier(c NotifierConfig) *Notifier {
	n := &Notifier{
		slack:           c.Slack,
		boards:          c.Leaderboard,
		score:           c.Score,
		secondsToAnswer: c.SecondsToAnswer,
	}

	c.Bus.Subscribe(domain.EventNameQuestionExpired, func(ctx context.Context, e event.Event) error {
		return n.onQuestionExpired(ctx, e.(domain.EventQuestionExpired))
	})
	c.Bus.Subscribe(domain.EventNameGameEnded, func(ctx context.Context, e event.Event) error {
		return n.onGameEnded(ctx, e.(domain.EventGameEnded))
	})

	if c.FinalEnabled {
		c.Bus.Subscribe(domain.EventNameFinalRoundStarted, func(ctx context.Context, e event.Event) error {
			return n.onFinalStarted(ctx, e.(domain.EventFinalRoundStarted))
		})
		c.Bus.Subscribe(domain.EventNameFinalRoundResolved, func(ctx context.Context, e event.Event) error {
			return n.onFinalResolved(ctx, e.(domain.EventFinalRoundResolved))
		})
	} else {
		// With Final Jeopardy off, an exhausted board ends the game
		// directly.
		c.Bus.Subscribe(domain.EventNameBoardExhausted, func(ctx context.Context, e event.Event) error {
			return n.onBoardExhausted(ctx, e.(domain.EventBoardExhausted))
		})
	}

	return n
}

func (n *Notifier) onQuestionExpired(ctx context.Context, e domain.EventQuestionExpired) error {
	return n.slack.PostMessage(ctx, reply.TimeUp(e.Question, n.secondsToAnswer))
}

func (n *Notifier) onBoardExhausted(ctx context.Context, _ domain.EventBoardExhausted) error {
	return n.endGame(ctx)
}

func (n *Notifier) onGameEnded(ctx context.Context, e domain.EventGameEnded) error {
	if e.Standings != "" {
		return n.slack.PostMessage(ctx, e.Standings+"\n\n"+reply.Farewell())
	}
	return n.endGame(ctx)
}

func (n *Notifier) onFinalStarted(ctx context.Context, e domain.EventFinalRoundStarted) error {
	return n.slack.PostMessage(ctx, reply.FinalRoundIntro(e.Category, e.Finalists))
}

func (n *Notifier) onFinalResolved(ctx context.Context, e domain.EventFinalRoundResolved) error {
	return n.slack.PostMessage(ctx, reply.FinalResults(e.Answer, e.Standings))
}

// endGame recaps the standings, signs off, and wipes the scores.
func (n *Notifier) endGame(ctx context.Context) error {
	standings, err := n.boards.Standings(ctx)
	if err != nil {
		return err
	}
	if err := n.slack.PostMessage(ctx, standings+"\n\n"+reply.Farewell()); err != nil {
		return err
	}
	return n.score.Reset(ctx)
}
