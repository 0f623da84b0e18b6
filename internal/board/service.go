// Package board owns the per-channel category/value inventory: creation
// from the provider, selection, depletion and removal.
package board

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"

	"github.com/khuckins/trebekbot/internal/domain"
	"github.com/khuckins/trebekbot/internal/errors"
	"github.com/khuckins/trebekbot/internal/jservice"
	"github.com/khuckins/trebekbot/internal/store"
)

// valueLadder is the five-rung dollar ladder every fresh category gets.
var valueLadder = []int{200, 400, 600, 800, 1000}

const maxPopulateAttempts = 3

var (
	ErrNoBoard        = stderrors.New("no active board")
	ErrNoSuchCategory = stderrors.New("category not on the board")
	ErrNoSuchValue    = stderrors.New("value not on the board")
)

type Provider interface {
	FetchCategories(ctx context.Context, count int) ([]jservice.Category, error)
}

type Config struct {
	Store         *store.Store
	Provider      Provider
	CategoryCount int
}

type Service struct {
	st       *store.Store
	provider Provider
	count    int
}

func NewService(c Config) *Service {
	count := c.CategoryCount
	if count <= 0 {
		count = 5
	}
	return &Service{st: c.Store, provider: c.Provider, count: count}
}

// Get returns the channel's board if one exists.
func (s *Service) Get(ctx context.Context, channelID string) (domain.Board, bool, error) {
	var b domain.Board
	ok, err := s.st.GetJSON(ctx, s.key(channelID), &b)
	return b, ok, err
}

// GetOrCreate returns the existing board or populates a fresh one from
// the provider, assigning each category the full value ladder. Category
// sets with unusable entries are resampled a bounded number of times.
func (s *Service) GetOrCreate(ctx context.Context, channelID string) (domain.Board, error) {
	b, ok, err := s.Get(ctx, channelID)
	if err != nil {
		return domain.Board{}, err
	}
	if ok {
		return b, nil
	}

	for attempt := 0; attempt < maxPopulateAttempts; attempt++ {
		cats, err := s.provider.FetchCategories(ctx, s.count)
		if err != nil {
			return domain.Board{}, err
		}
		if !usable(cats, s.count) {
			continue
		}

		id, err := uuid.NewV7()
		if err != nil {
			return domain.Board{}, err
		}

		b = domain.Board{ID: id.String()}
		for _, c := range cats {
			b.Categories = append(b.Categories, domain.Category{
				ID:         c.ID,
				Title:      c.Title,
				CluesCount: c.CluesCount,
				Values:     append([]int(nil), valueLadder...),
			})
		}

		if err := s.st.SetJSON(ctx, s.key(channelID), b); err != nil {
			return domain.Board{}, err
		}
		return b, nil
	}

	return domain.Board{}, errors.New(errors.CodeResourceExhausted,
		errors.WithMessagef("provider kept returning unusable categories"))
}

func usable(cats []jservice.Category, want int) bool {
	if len(cats) < want {
		return false
	}
	for _, c := range cats {
		if strings.TrimSpace(c.Title) == "" || c.CluesCount == 0 {
			return false
		}
	}
	return true
}

// FindCategory matches a requested title against the board,
// case-insensitively.
func (s *Service) FindCategory(ctx context.Context, channelID, title string) (domain.Category, error) {
	b, ok, err := s.Get(ctx, channelID)
	if err != nil {
		return domain.Category{}, err
	}
	if !ok {
		return domain.Category{}, errors.New(errors.CodeFailedPrecondition, errors.WithCause(ErrNoBoard))
	}

	for _, c := range b.Categories {
		if strings.EqualFold(c.Title, title) {
			return c, nil
		}
	}
	return domain.Category{}, errors.New(errors.CodeNotFound, errors.WithCause(ErrNoSuchCategory))
}

// TakeValue removes a value from a category. Emptying a category removes
// it from the board; exhausted reports that the board itself just became
// empty, which is the hand-off signal for the round controller.
func (s *Service) TakeValue(ctx context.Context, channelID, title string, value int) (cat domain.Category, exhausted bool, err error) {
	b, ok, err := s.Get(ctx, channelID)
	if err != nil {
		return domain.Category{}, false, err
	}
	if !ok {
		return domain.Category{}, false, errors.New(errors.CodeFailedPrecondition, errors.WithCause(ErrNoBoard))
	}

	idx := -1
	for i, c := range b.Categories {
		if strings.EqualFold(c.Title, title) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Category{}, false, errors.New(errors.CodeNotFound, errors.WithCause(ErrNoSuchCategory))
	}

	cat = b.Categories[idx]
	if !cat.HasValue(value) {
		return domain.Category{}, false, errors.New(errors.CodeNotFound, errors.WithCause(ErrNoSuchValue))
	}

	remaining := make([]int, 0, len(cat.Values)-1)
	for _, v := range cat.Values {
		if v != value {
			remaining = append(remaining, v)
		}
	}
	cat.Values = remaining

	if len(remaining) == 0 {
		b.Categories = append(b.Categories[:idx], b.Categories[idx+1:]...)
	} else {
		b.Categories[idx] = cat
	}

	if len(b.Categories) == 0 {
		if err := s.st.Del(ctx, s.key(channelID)); err != nil {
			return domain.Category{}, false, err
		}
		return cat, true, nil
	}

	if err := s.st.SetJSON(ctx, s.key(channelID), b); err != nil {
		return domain.Category{}, false, err
	}
	return cat, false, nil
}

// Remove drops the channel's board entirely.
func (s *Service) Remove(ctx context.Context, channelID string) error {
	return s.st.Del(ctx, s.key(channelID))
}

func (s *Service) key(channelID string) string {
	return s.st.Key("current_categories", channelID)
}
