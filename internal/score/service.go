// Package score owns the per-user score records. Scores live in the
// shared store, keyed user_score:<id>, and survive rounds until a full
// game reset flushes them.
package score

import (
	"context"
	"strconv"
	"strings"

	"github.com/khuckins/trebekbot/internal/store"
)

type Config struct {
	Store *store.Store
}

type Service struct {
	st *store.Store
}

func NewService(c Config) *Service {
	return &Service{st: c.Store}
}

// Get returns the user's score, initializing the record to zero on first
// read so the user shows up on the leaderboard.
func (s *Service) Get(ctx context.Context, userID string) (int, error) {
	key := s.key(userID)

	raw, ok, err := s.st.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		if err := s.st.Set(ctx, key, "0"); err != nil {
			return 0, err
		}
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Add applies a signed delta atomically and returns the new total.
func (s *Service) Add(ctx context.Context, userID string, delta int) (int, error) {
	n, err := s.st.IncrBy(ctx, s.key(userID), int64(delta))
	return int(n), err
}

// All returns every recorded score by user ID.
func (s *Service) All(ctx context.Context) (map[string]int, error) {
	prefix := s.key("")
	keys, err := s.st.Scan(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}

	scores := make(map[string]int, len(keys))
	for _, key := range keys {
		raw, ok, err := s.st.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		scores[strings.TrimPrefix(key, prefix)] = n
	}
	return scores, nil
}

// Reset wipes all game state, scores included.
func (s *Service) Reset(ctx context.Context) error {
	return s.st.Flush(ctx)
}

func (s *Service) key(userID string) string {
	return s.st.Key("user_score", userID)
}
