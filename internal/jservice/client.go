// Package jservice is the trivia content provider client. It only knows
// the provider's wire shapes; cleanup of answers and retry policy live
// with the callers.
package jservice

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/khuckins/trebekbot/internal/errors"
)

// maxCategoryID bounds the random offset used to sample category pages.
const maxCategoryID = 18418

type Category struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	CluesCount int    `json:"clues_count"`
}

type Clue struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Value    *int     `json:"value"`
	Airdate  string   `json:"airdate"`
	Category Category `json:"category"`
}

type Client struct {
	baseURL string
	hc      *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, hc: hc}
}

// FetchCategories samples count categories from a random page of the
// provider's category index.
func (c *Client) FetchCategories(ctx context.Context, count int) ([]Category, error) {
	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	q.Set("offset", strconv.Itoa(1+rand.Intn(maxCategoryID/count)))

	var cats []Category
	if err := c.getJSON(ctx, "/api/categories", q, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// FetchClue returns one clue from a category, optionally pinned to a
// dollar value. offset picks among the category's clues.
func (c *Client) FetchClue(ctx context.Context, categoryID, value, offset int) (Clue, error) {
	q := url.Values{}
	q.Set("category", strconv.Itoa(categoryID))
	if value > 0 {
		q.Set("value", strconv.Itoa(value))
	}
	q.Set("offset", strconv.Itoa(offset))

	return c.firstClue(ctx, "/api/clues", q)
}

// FetchRandom returns one clue from the unfiltered random pool.
func (c *Client) FetchRandom(ctx context.Context) (Clue, error) {
	q := url.Values{}
	q.Set("count", "1")

	return c.firstClue(ctx, "/api/random", q)
}

func (c *Client) firstClue(ctx context.Context, path string, q url.Values) (Clue, error) {
	var clues []Clue
	if err := c.getJSON(ctx, path, q, &clues); err != nil {
		return Clue{}, err
	}
	if len(clues) == 0 {
		return Clue{}, errors.New(errors.CodeNotFound, errors.WithMessagef("provider returned no clues for %s", path))
	}
	return clues[0], nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("jservice: new request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.New(errors.CodeResourceExhausted,
			errors.WithMessagef("provider unavailable"),
			errors.WithCause(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.CodeResourceExhausted,
			errors.WithMessagef("provider responded %d for %s", resp.StatusCode, path))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("jservice: decode %s: %w", path, err)
	}
	return nil
}
