package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/khuckins/trebekbot/internal/match"
)

const threshold = 0.5

func TestIsCorrect(t *testing.T) {
	tests := []struct {
		name      string
		canonical string
		submitted string
		want      bool
	}{
		{"article stripped from question form", "a golden retriever", "what is a golden retriever", true},
		{"article case and phrasing insensitive", "the Great Gatsby", "what is great gatsby", true},
		{"wrong answer", "Paris", "what is london", false},
		{"bare answer without interrogative still matches", "Paris", "paris", true},
		{"question mark irrelevant", "Paris", "what is paris?", true},
		{"parenthetical clause ignored", "(Grover) Cleveland", "who is cleveland", true},
		{"ampersand join", "Simon & Garfunkel", "who are simon and garfunkel", true},
		{"minor typo within fuzzy threshold", "Mississippi", "what is missisippi", true},
		{"spelled-out number", "seven", "what is 7", true},
		{"empty submission", "Paris", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, match.IsCorrect(tt.canonical, tt.submitted, threshold))
		})
	}
}

func TestIsQuestionFormat(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"what is dirt", true},
		{"What is dirt?", true},
		{"what's dirt", true},
		{"whats dirt", true},
		{"where's the beef", true},
		{"who is Alex Trebek", true},
		{"dirt", false},
		{"is it dirt", false},
		{"whatever it is", false},
		{"what", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, match.IsQuestionFormat(tt.text))
		})
	}
}

func TestNormalizeSubmission(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What is the Great Gatsby?", "great gatsby"},
		{"who was a president", "president"},
		{"WHERE ARE THE ALPS", "alps"},
		{"dirt", "dirt"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, match.NormalizeSubmission(tt.in))
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, match.Similarity("paris", "paris"))
	assert.Equal(t, 0.0, match.Similarity("abc", "xyz"))

	// Known Simon White example: FRANCE vs FRENCH = 2*2/(5+5) = 0.4.
	assert.InDelta(t, 0.4, match.Similarity("france", "french"), 1e-9)

	// Word boundaries matter: bigrams never span words.
	assert.Equal(t, 0.0, match.Similarity("ab cd", "bc"))
}
