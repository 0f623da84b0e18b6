// Package api is the webhook surface: it receives Slack outgoing-webhook
// deliveries, routes them through the dispatcher to the game services,
// and answers in Slack's response format. Deferred announcements travel
// through the notifier in notify.go.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/khuckins/trebekbot/internal/board"
	"github.com/khuckins/trebekbot/internal/dispatch"
	"github.com/khuckins/trebekbot/internal/errors"
	"github.com/khuckins/trebekbot/internal/final"
	"github.com/khuckins/trebekbot/internal/leaderboard"
	"github.com/khuckins/trebekbot/internal/reply"
	"github.com/khuckins/trebekbot/internal/round"
	"github.com/khuckins/trebekbot/internal/score"
	"github.com/khuckins/trebekbot/internal/slack"
)

var commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trebekbot_commands_total",
	Help: "Webhook commands processed, by kind.",
}, []string{"kind"})

type Config struct {
	Router *gin.Engine

	Round       *round.Service
	Final       *final.Service // nil disables Final Jeopardy
	Board       *board.Service
	Score       *score.Service
	Leaderboard *leaderboard.Service
	Slack       *slack.Client

	BotName          string
	WebhookToken     string
	ChannelBlacklist []string
}

type API struct {
	round  *round.Service
	final  *final.Service
	board  *board.Service
	score  *score.Service
	boards *leaderboard.Service
	slack  *slack.Client

	botName      string
	webhookToken string
	blacklist    []string
}

func New(c Config) *API {
	a := &API{
		round:        c.Round,
		final:        c.Final,
		board:        c.Board,
		score:        c.Score,
		boards:       c.Leaderboard,
		slack:        c.Slack,
		botName:      c.BotName,
		webhookToken: c.WebhookToken,
		blacklist:    c.ChannelBlacklist,
	}

	c.Router.POST("/", a.handleWebhook)
	return a
}

func (a *API) handleWebhook(c *gin.Context) {
	// A panic must never leak a 500 back to Slack mid-game; answer with
	// silence and keep serving.
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(c.Request.Context(), "api: webhook panic",
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
			c.JSON(http.StatusOK, slack.Message{})
		}
	}()

	if a.webhookToken != "" && c.PostForm("token") != a.webhookToken {
		c.JSON(http.StatusUnauthorized, a.slack.NewMessage("Invalid token."))
		return
	}

	userName := c.PostForm("user_name")
	if userName == "slackbot" || userName == a.botName {
		c.Status(http.StatusOK)
		return
	}

	channelID := c.PostForm("channel_id")
	if a.blacklisted(channelID, c.PostForm("channel_name")) {
		c.JSON(http.StatusOK, a.slack.NewMessage("Sorry, we can't play in this channel."))
		return
	}

	text := strings.TrimSpace(strings.TrimPrefix(c.PostForm("text"), c.PostForm("trigger_word")))
	cmd := dispatch.Parse(text)
	commandsTotal.WithLabelValues(cmd.Kind.String()).Inc()

	msg, err := a.execute(c.Request.Context(), cmd, channelID, c.PostForm("user_id"), userName)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "api: command failed",
			"kind", cmd.Kind.String(),
			"channel", channelID,
			"error", err,
		)
		msg = apology(err)
	}

	if msg == "" {
		c.Status(http.StatusOK)
		return
	}
	c.JSON(http.StatusOK, a.slack.NewMessage(msg))
}

func (a *API) execute(ctx context.Context, cmd dispatch.Command, channelID, userID, userName string) (string, error) {
	// While Final Jeopardy is underway the board commands are off the
	// table; answers and wagers are the only game in town.
	switch cmd.Kind {
	case dispatch.KindRandomQuestion, dispatch.KindTakeQuestion, dispatch.KindCategories:
		active, err := a.finalActive(ctx, channelID)
		if err != nil {
			return "", err
		}
		if active {
			return "We're in Final Jeopardy! now. Place your wager or answer the clue.", nil
		}
	}

	switch cmd.Kind {
	case dispatch.KindRandomQuestion:
		return a.round.IssueRandom(ctx, channelID)

	case dispatch.KindTakeQuestion:
		return a.round.IssueFromBoard(ctx, channelID, cmd.Category, cmd.Value)

	case dispatch.KindCategories:
		b, err := a.board.GetOrCreate(ctx, channelID)
		if err != nil {
			return "", err
		}
		return reply.Categories(b), nil

	case dispatch.KindWager:
		if a.final == nil {
			return "Final Jeopardy! is not played around here.", nil
		}
		return a.final.SubmitWager(ctx, channelID, userID, userName, cmd.Amount)

	case dispatch.KindAnswer:
		if a.final != nil {
			handled, msg, err := a.final.SubmitAnswer(ctx, channelID, userID, userName, cmd.Text)
			if err != nil || handled {
				return msg, err
			}
		}
		return a.round.SubmitAnswer(ctx, channelID, userID, userName, cmd.Text)

	case dispatch.KindMyScore:
		n, err := a.score.Get(ctx, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s, your score is %s.", userName, reply.Currency(n)), nil

	case dispatch.KindLeaderboard:
		return a.boards.Top(ctx)

	case dispatch.KindLoserboard:
		return a.boards.Bottom(ctx)

	case dispatch.KindEndGame:
		return a.endGame(ctx)

	case dispatch.KindHelp:
		return reply.Help(a.botName, a.round.SecondsToAnswer()), nil

	case dispatch.KindZork:
		return reply.Zork(), nil

	case dispatch.KindThrow:
		return reply.ThrowRefusal(), nil
	}

	return "", nil
}

// endGame recaps the standings and wipes every score.
func (a *API) endGame(ctx context.Context) (string, error) {
	standings, err := a.boards.Standings(ctx)
	if err != nil {
		return "", err
	}
	if err := a.score.Reset(ctx); err != nil {
		return "", err
	}
	return standings + "\n\n" + reply.Farewell(), nil
}

func (a *API) finalActive(ctx context.Context, channelID string) (bool, error) {
	if a.final == nil {
		return false, nil
	}
	return a.final.IsActive(ctx, channelID)
}

func (a *API) blacklisted(channelID, channelName string) bool {
	for _, ch := range a.blacklist {
		if ch == channelID || ch == channelName {
			return true
		}
	}
	return false
}

// apology turns an internal failure into something Trebek would say.
func apology(err error) string {
	if errors.IsCode(err, errors.CodeResourceExhausted) {
		return "The trivia archive is not answering. Let's take a short commercial break and try again."
	}
	return "We seem to be having technical difficulties. Let's move on."
}
