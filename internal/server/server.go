package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/khuckins/trebekbot/internal/api"
	"github.com/khuckins/trebekbot/internal/board"
	"github.com/khuckins/trebekbot/internal/event"
	"github.com/khuckins/trebekbot/internal/final"
	"github.com/khuckins/trebekbot/internal/jservice"
	"github.com/khuckins/trebekbot/internal/leaderboard"
	"github.com/khuckins/trebekbot/internal/round"
	"github.com/khuckins/trebekbot/internal/score"
	"github.com/khuckins/trebekbot/internal/slack"
	"github.com/khuckins/trebekbot/internal/store"
	"github.com/khuckins/trebekbot/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	Slack struct {
		WebhookToken     string
		APIToken         string
		PushURL          string
		BotUsername      string
		BotIcon          string
		ChannelBlacklist []string
	}

	Game struct {
		SecondsToAnswer     int
		SimilarityThreshold float64
		DailyDoubleChance   float64
		CategoryCount       int
		FinalRound          bool
		QuestionBlacklist   []string
	}

	Provider struct {
		BaseURL string
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis redis.UniversalClient
		store *store.Store
	}

	service struct {
		slack       *slack.Client
		provider    *jservice.Client
		board       *board.Service
		score       *score.Service
		round       *round.Service
		final       *final.Service
		leaderboard *leaderboard.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "http://jservice.io"
	}
	if c.Slack.BotUsername == "" {
		c.Slack.BotUsername = "trebekbot"
	}

	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	s.infra.redis = r
	s.infra.store = store.New(r, s.c.Redis.Prefix)
	return nil
}

func (s *Server) initService() {
	s.service.provider = jservice.New(s.c.Provider.BaseURL, nil)

	s.service.slack = slack.New(slack.Config{
		APIToken: s.c.Slack.APIToken,
		PushURL:  s.c.Slack.PushURL,
		Username: s.c.Slack.BotUsername,
		Icon:     s.c.Slack.BotIcon,
		Store:    s.infra.store,
	})

	s.service.board = board.NewService(board.Config{
		Store:         s.infra.store,
		Provider:      s.service.provider,
		CategoryCount: s.c.Game.CategoryCount,
	})

	s.service.score = score.NewService(score.Config{
		Store: s.infra.store,
	})

	s.service.round = round.NewService(round.Config{
		Store:               s.infra.store,
		Board:               s.service.board,
		Score:               s.service.score,
		Bus:                 s.eb,
		Provider:            s.service.provider,
		SecondsToAnswer:     s.c.Game.SecondsToAnswer,
		SimilarityThreshold: s.c.Game.SimilarityThreshold,
		DailyDoubleChance:   s.c.Game.DailyDoubleChance,
		QuestionBlacklist:   s.c.Game.QuestionBlacklist,
	})

	if s.c.Game.FinalRound {
		s.service.final = final.NewService(final.Config{
			Store:               s.infra.store,
			Score:               s.service.score,
			Bus:                 s.eb,
			Provider:            s.service.provider,
			Resolver:            s.service.slack,
			SimilarityThreshold: s.c.Game.SimilarityThreshold,
		})
		s.service.final.Arm()
	}

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		Store:    s.infra.store,
		Score:    s.service.score,
		Resolver: s.service.slack,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Router:           e,
		Round:            s.service.round,
		Final:            s.service.final,
		Board:            s.service.board,
		Score:            s.service.score,
		Leaderboard:      s.service.leaderboard,
		Slack:            s.service.slack,
		BotName:          s.c.Slack.BotUsername,
		WebhookToken:     s.c.Slack.WebhookToken,
		ChannelBlacklist: s.c.Slack.ChannelBlacklist,
	})

	api.NewNotifier(api.NotifierConfig{
		Bus:             s.eb,
		Slack:           s.service.slack,
		Leaderboard:     s.service.leaderboard,
		Score:           s.service.score,
		SecondsToAnswer: s.service.round.SecondsToAnswer(),
		FinalEnabled:    s.c.Game.FinalRound,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if err := s.infra.redis.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
