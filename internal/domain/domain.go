package domain

import "time"

// Category is one column of a channel's board. Values shrink as questions
// are taken; the category disappears from the board once Values is empty.
type Category struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	CluesCount int    `json:"clues_count"`
	Values     []int  `json:"values"`
}

// HasValue reports whether the given dollar value is still on the board
// for this category.
func (c Category) HasValue(v int) bool {
	for _, have := range c.Values {
		if have == v {
			return true
		}
	}
	return false
}

// Board is the set of categories currently in play for a channel.
// At most one board exists per channel; ID changes on every repopulation,
// which is what scopes the daily-double marker and stale expiration timers.
type Board struct {
	ID         string     `json:"id"`
	Categories []Category `json:"categories"`
}

// Question is the single active clue for a channel.
type Question struct {
	ID            int       `json:"id"`
	BoardID       string    `json:"board_id,omitempty"`
	CategoryTitle string    `json:"category_title"`
	Value         int       `json:"value"`
	Text          string    `json:"text"`
	Answer        string    `json:"answer"`
	Airdate       string    `json:"airdate,omitempty"`
	DailyDouble   bool      `json:"daily_double,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Finalist is a player eligible for the final round: anyone with a
// positive score at the moment the board is exhausted.
type Finalist struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
}

// FinalAnswer records one finalist's single attempt at the final clue.
// Delta is the signed wager outcome, applied at resolution time.
type FinalAnswer struct {
	UserID string `json:"user_id"`
	Answer string `json:"answer"`
	Delta  int    `json:"delta"`
}

// FinalStanding is one row of the resolved final-round results.
type FinalStanding struct {
	Name  string `json:"name"`
	Wager int    `json:"wager"`
	Delta int    `json:"delta"`
	Total int    `json:"total"`
}

// LeaderboardEntry is one rendered leaderboard row input.
type LeaderboardEntry struct {
	UserID string
	Name   string
	Score  int
}
