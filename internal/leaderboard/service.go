// Package leaderboard renders the top and bottom scoreboards. Rendered
// boards are cached in the store for a short window; scores move fast
// enough mid-game that a slightly stale board is fine.
package leaderboard

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/khuckins/trebekbot/internal/domain"
	"github.com/khuckins/trebekbot/internal/reply"
	"github.com/khuckins/trebekbot/internal/score"
	"github.com/khuckins/trebekbot/internal/store"
)

const (
	defaultCacheTTL = 5 * time.Minute
	boardSize       = 10
	lookupLimit     = 4
)

// Resolver maps a user ID to a display name.
type Resolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

type Config struct {
	Store    *store.Store
	Score    *score.Service
	Resolver Resolver
	CacheTTL time.Duration
}

type Service struct {
	st       *store.Store
	score    *score.Service
	resolver Resolver
	ttl      time.Duration
}

func NewService(c Config) *Service {
	ttl := c.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{st: c.Store, score: c.Score, resolver: c.Resolver, ttl: ttl}
}

// Top renders the ten highest scores.
func (s *Service) Top(ctx context.Context) (string, error) {
	return s.render(ctx, s.st.Key("leaderboard", "1"), true)
}

// Bottom renders the ten lowest scores.
func (s *Service) Bottom(ctx context.Context) (string, error) {
	return s.render(ctx, s.st.Key("loserboard", "1"), false)
}

// Standings renders every score, highest first, for the game-over recap.
// It bypasses the cache: the recap must reflect the final state.
func (s *Service) Standings(ctx context.Context) (string, error) {
	entries, err := s.entries(ctx, true, 0)
	if err != nil {
		return "", err
	}
	return reply.Leaderboard(entries, true), nil
}

func (s *Service) render(ctx context.Context, cacheKey string, descending bool) (string, error) {
	if cached, ok, err := s.st.Get(ctx, cacheKey); err != nil {
		return "", err
	} else if ok {
		return cached, nil
	}

	entries, err := s.entries(ctx, descending, boardSize)
	if err != nil {
		return "", err
	}

	rendered := reply.Leaderboard(entries, descending)
	if err := s.st.SetEx(ctx, cacheKey, rendered, s.ttl); err != nil {
		return "", err
	}
	return rendered, nil
}

func (s *Service) entries(ctx context.Context, descending bool, limit int) ([]domain.LeaderboardEntry, error) {
	scores, err := s.score.All(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(scores))
	for userID, n := range scores {
		entries = append(entries, domain.LeaderboardEntry{UserID: userID, Score: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			if descending {
				return entries[i].Score > entries[j].Score
			}
			return entries[i].Score < entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	// Name lookups fan out; order is preserved by index.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupLimit)
	for i := range entries {
		i := i
		g.Go(func() error {
			name, err := s.resolver.DisplayName(gctx, entries[i].UserID)
			if err != nil {
				return err
			}
			entries[i].Name = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
