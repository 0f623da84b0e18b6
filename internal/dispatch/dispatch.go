// Package dispatch turns the text of a webhook delivery into a typed
// command. Patterns are tried in order; anything that matches nothing is
// an answer attempt.
package dispatch

import (
	"regexp"
	"strconv"
	"strings"
)

type Kind int

const (
	KindAnswer Kind = iota
	KindRandomQuestion
	KindTakeQuestion
	KindWager
	KindMyScore
	KindLeaderboard
	KindLoserboard
	KindCategories
	KindEndGame
	KindHelp
	KindZork
	KindThrow
)

func (k Kind) String() string {
	switch k {
	case KindAnswer:
		return "answer"
	case KindRandomQuestion:
		return "random_question"
	case KindTakeQuestion:
		return "take_question"
	case KindWager:
		return "wager"
	case KindMyScore:
		return "my_score"
	case KindLeaderboard:
		return "leaderboard"
	case KindLoserboard:
		return "loserboard"
	case KindCategories:
		return "categories"
	case KindEndGame:
		return "end_game"
	case KindHelp:
		return "help"
	case KindZork:
		return "zork"
	case KindThrow:
		return "throw"
	default:
		return "unknown"
	}
}

// Command is one parsed delivery. Category, Value, Amount and Text are
// populated only for the kinds that carry them; Value and Amount are -1
// when the user typed something that would not parse as a dollar amount.
type Command struct {
	Kind     Kind
	Category string
	Value    int
	Amount   int
	Text     string
}

var (
	randomRe      = regexp.MustCompile(`(?i)^jeopardy(\s+me)?[.!?\s]*$`)
	takeRe        = regexp.MustCompile(`(?i)^i'?ll\s+take\s+(.+?)\s+for\s+(.+?)[.!?\s]*$`)
	wagerRe       = regexp.MustCompile(`(?i)^i\s+wager\s+(.+?)[.!?\s]*$`)
	scoreRe       = regexp.MustCompile(`(?i)^(what('?s|\s+is)\s+)?my\s+score[.!?\s]*$`)
	leaderboardRe = regexp.MustCompile(`(?i)^show\s+(me\s+)?the\s+leaderboard[.!?\s]*$`)
	loserboardRe  = regexp.MustCompile(`(?i)^show\s+(me\s+)?the\s+loserboard[.!?\s]*$`)
	categoriesRe  = regexp.MustCompile(`(?i)^(let'?s\s+play|show\s+(me\s+)?the\s+categories)[.!?\s]*$`)
	endRe         = regexp.MustCompile(`(?i)^(end|cancel)\s+(the\s+)?game[.!?\s]*$`)
	helpRe        = regexp.MustCompile(`(?i)^help[.!?\s]*$`)
	zorkRe        = regexp.MustCompile(`(?i)^zork[.!?\s]*$`)
	throwRe       = regexp.MustCompile(`(?i)^throw\s+.+\s+at\s+.+$`)

	// Players sign off selections with the host's name; drop it.
	hostSuffixRe = regexp.MustCompile(`(?i)[,\s]+(alex|trebek)$`)
)

// Parse classifies one delivery. text must already have the trigger word
// stripped.
func Parse(text string) Command {
	text = strings.TrimSpace(text)

	switch {
	case randomRe.MatchString(text):
		return Command{Kind: KindRandomQuestion}
	case scoreRe.MatchString(text):
		return Command{Kind: KindMyScore}
	case leaderboardRe.MatchString(text):
		return Command{Kind: KindLeaderboard}
	case loserboardRe.MatchString(text):
		return Command{Kind: KindLoserboard}
	case categoriesRe.MatchString(text):
		return Command{Kind: KindCategories}
	case endRe.MatchString(text):
		return Command{Kind: KindEndGame}
	case helpRe.MatchString(text):
		return Command{Kind: KindHelp}
	case zorkRe.MatchString(text):
		return Command{Kind: KindZork}
	case throwRe.MatchString(text):
		return Command{Kind: KindThrow}
	}

	if m := takeRe.FindStringSubmatch(text); m != nil {
		return Command{
			Kind:     KindTakeQuestion,
			Category: strings.TrimSpace(hostSuffixRe.ReplaceAllString(m[1], "")),
			Value:    parseDollars(hostSuffixRe.ReplaceAllString(m[2], "")),
		}
	}
	if m := wagerRe.FindStringSubmatch(text); m != nil {
		return Command{Kind: KindWager, Amount: parseDollars(m[1])}
	}

	return Command{Kind: KindAnswer, Text: text}
}

// parseDollars reads a dollar amount leniently: "$1,000", "1000" and
// "1000 dollars" all work. Unreadable amounts come back as -1 so callers
// can complain in character instead of erroring.
func parseDollars(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSuffix(s, " dollars")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
