// Package match adjudicates user answers: it normalizes both sides into a
// canonical comparable form and scores near-misses with the White/Dice
// word-bigram similarity the original threshold was calibrated against.
package match

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	articleRe       = regexp.MustCompile(`^(the|a|an) `)
	punctRe         = regexp.MustCompile(`[^\w\s]`)
	parenRe         = regexp.MustCompile(`\(.*\)`)
	interrogativeRe = regexp.MustCompile(`^(what|whats|where|wheres|who|whos|when|whens) `)
	copulaRe        = regexp.MustCompile(`^(is|are|was|were) `)
	ampersandRe     = regexp.MustCompile(`\s+(&nbsp;|&)\s+`)
	questionRe      = regexp.MustCompile(`^(what|whats|where|wheres|who|whos) `)
)

var numberWords = []struct{ word, digit string }{
	{"one", "1"}, {"two", "2"}, {"three", "3"}, {"four", "4"}, {"five", "5"},
	{"six", "6"}, {"seven", "7"}, {"eight", "8"}, {"nine", "9"}, {"ten", "10"},
}

func digitize(s string) string {
	for _, n := range numberWords {
		s = strings.ReplaceAll(s, n.word, n.digit)
	}
	return s
}

// NormalizeAnswer turns the provider's canonical answer into its two
// comparable variants: the punctuation-stripped form, and the same with
// any parenthetical clause removed.
func NormalizeAnswer(s string) (plain, noParen string) {
	base := strings.ToLower(strings.TrimSpace(s))
	base = articleRe.ReplaceAllString(base, "")
	base = articleRe.ReplaceAllString(base, "")
	base = digitize(base)

	plain = strings.TrimSpace(punctRe.ReplaceAllString(base, ""))
	noParen = strings.TrimSpace(punctRe.ReplaceAllString(parenRe.ReplaceAllString(base, ""), ""))
	return plain, noParen
}

// NormalizeSubmission canonicalizes a user's attempt: ampersand joins
// become "and", punctuation goes, then the leading interrogative, copula
// and article are peeled off.
func NormalizeSubmission(s string) string {
	sub := strings.ToLower(strings.TrimSpace(s))
	sub = ampersandRe.ReplaceAllString(sub, " and ")
	sub = punctRe.ReplaceAllString(sub, "")
	sub = interrogativeRe.ReplaceAllString(sub, "")
	sub = copulaRe.ReplaceAllString(sub, "")
	sub = articleRe.ReplaceAllString(sub, "")
	sub = digitize(sub)
	return strings.TrimSpace(sub)
}

// IsQuestionFormat reports whether the text, punctuation aside, begins
// with an interrogative. A literal question mark is irrelevant.
func IsQuestionFormat(s string) bool {
	stripped := punctRe.ReplaceAllString(strings.ToLower(s), "")
	return questionRe.MatchString(stripped)
}

// IsCorrect reports whether the submission matches the canonical answer,
// either exactly against one of its normalized variants or fuzzily above
// the similarity threshold.
func IsCorrect(canonical, submitted string, threshold float64) bool {
	plain, noParen := NormalizeAnswer(canonical)
	sub := NormalizeSubmission(submitted)

	for _, solution := range []string{plain, noParen} {
		if solution == sub || Similarity(solution, sub) >= threshold {
			return true
		}
	}
	return false
}

// Similarity computes Simon White's string similarity: the Dice
// coefficient over letter bigrams taken within words, never across word
// boundaries. Result is in [0,1].
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}

	pairsA := wordLetterPairs(a)
	pairsB := wordLetterPairs(b)
	union := len(pairsA) + len(pairsB)
	if union == 0 {
		return 0
	}

	// Multiset intersection: each pair in b matches at most once.
	intersection := 0
	for _, pa := range pairsA {
		for i, pb := range pairsB {
			if pa == pb {
				intersection++
				pairsB[i] = pairsB[len(pairsB)-1]
				pairsB = pairsB[:len(pairsB)-1]
				break
			}
		}
	}

	return 2 * float64(intersection) / float64(union)
}

var (
	htmlPolicy   = bluemonday.StrictPolicy()
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Scrub strips the archive's markup from a clue and collapses whitespace.
func Scrub(s string) string {
	clean := html.UnescapeString(htmlPolicy.Sanitize(s))
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(clean, " "))
}

// ScrubAnswer additionally drops the stray backslashes the archive keeps
// and folds ampersand joins into "and".
func ScrubAnswer(s string) string {
	return ampersandRe.ReplaceAllString(Scrub(strings.ReplaceAll(s, `\`, "")), " and ")
}

func wordLetterPairs(s string) []string {
	var pairs []string
	for _, word := range strings.Fields(strings.ToUpper(s)) {
		runes := []rune(word)
		for i := 0; i+1 < len(runes); i++ {
			pairs = append(pairs, string(runes[i:i+2]))
		}
	}
	return pairs
}
