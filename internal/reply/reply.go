// Package reply owns every user-facing line the bot speaks: currency
// formatting, the Trebek quote tables, and the renderers for questions,
// leaderboards and final-round results.
package reply

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/khuckins/trebekbot/internal/domain"
)

// Currency formats a dollar amount, e.g. -10000 becomes "-$10,000".
func Currency(n int) string {
	prefix := "$"
	if n < 0 {
		prefix = "-$"
		n = -n
	}

	digits := strconv.Itoa(n)
	var b strings.Builder
	b.WriteString(prefix)
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}

// Question renders an issued clue, prefixed with the reveal of the
// previous round's answer when one was still open.
func Question(q domain.Question, previousAnswer string) string {
	var b strings.Builder
	if previousAnswer != "" {
		fmt.Fprintf(&b, "The answer is `%s`.\n", previousAnswer)
	}
	if q.DailyDouble {
		b.WriteString("It's the Daily Double! This clue is worth twice as much.\n")
	}
	fmt.Fprintf(&b, "The category is `%s` for %s", q.CategoryTitle, Currency(q.Value))
	if year := airdateYear(q.Airdate); year != "" {
		fmt.Fprintf(&b, ", from `%s`", year)
	}
	fmt.Fprintf(&b, ": `%s`", q.Text)
	return b.String()
}

func airdateYear(airdate string) string {
	if len(airdate) < 4 {
		return ""
	}
	year := airdate[:4]
	if _, err := strconv.Atoi(year); err != nil {
		return ""
	}
	return year
}

// Categories renders the remaining board.
func Categories(b domain.Board) string {
	var sb strings.Builder
	sb.WriteString("Wonderful. Let's take a look at the categories. They are: \n")
	for _, c := range b.Categories {
		values := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			values = append(values, strconv.Itoa(v))
		}
		fmt.Fprintf(&sb, "`%s` for `%s`.\n", c.Title, strings.Join(values, "`, `"))
	}
	return sb.String()
}

// Leaderboard renders ranked entries, or the fixed empty-board line.
func Leaderboard(entries []domain.LeaderboardEntry, descending bool) string {
	if len(entries) == 0 {
		return "There are no scores yet!"
	}

	header := "Let's take a look at the top scores:"
	if !descending {
		header = "Let's take a look at the bottom scores:"
	}

	rows := make([]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, fmt.Sprintf("%d. %s: %s", i+1, e.Name, Currency(e.Score)))
	}
	return header + "\n\n" + strings.Join(rows, "\n")
}

// NoBoard asks the channel to open a board first.
func NoBoard() string {
	return "There's no board in play. Say `let's play` to see the categories."
}

// NoSuchCategory rejects a category that is not on the board.
func NoSuchCategory(title string) string {
	return fmt.Sprintf("For the last time, `%s` is not a category.", title)
}

// NoSuchValue rejects a dollar value the category no longer offers.
func NoSuchValue(title string) string {
	return fmt.Sprintf("`%s` doesn't have a clue for that amount. Pick one that's still on the board.", title)
}

// Correct congratulates a winning answer and announces the new total.
func Correct(name string, score int) string {
	return fmt.Sprintf("That is correct, %s. Your score is now %s.", name, Currency(score))
}

// NotQuestion penalizes a right answer given in the wrong form.
func NotQuestion(name string, score int) string {
	return fmt.Sprintf("That is correct, %s, but responses have to be in the form of a question. %s %s.",
		name, WrongScoreQuote(), Currency(score))
}

// Wrong penalizes an incorrect answer.
func Wrong(score int) string {
	return fmt.Sprintf("%s %s %s.", WrongQuote(), WrongScoreQuote(), Currency(score))
}

// HadYourChance turns away a second attempt at the same clue.
func HadYourChance(name string) string {
	return fmt.Sprintf("You had your chance, %s. Let someone else answer.", name)
}

// TimeUp announces an expired question.
func TimeUp(q domain.Question, secondsToAnswer int) string {
	return fmt.Sprintf("Time's up! Remember, you have %d seconds to answer. The correct answer is `%s`.", secondsToAnswer, q.Answer)
}

// FinalRoundIntro announces the final round, its category and finalists.
func FinalRoundIntro(category string, finalists []domain.Finalist) string {
	names := make([]string, 0, len(finalists))
	for _, f := range finalists {
		names = append(names, fmt.Sprintf("%s (%s)", f.Name, Currency(f.Score)))
	}
	return fmt.Sprintf("And that's the end of regular play, which means it's time for Final Jeopardy!\n"+
		"The category is `%s`. Our finalists are: %s.\n"+
		"Finalists, place your wagers with `I wager <amount>`.",
		category, strings.Join(names, ", "))
}

// FinalQuestion announces the shared final clue once every wager is in.
func FinalQuestion(category, clue string, secondsToAnswer int) string {
	return fmt.Sprintf("All wagers are in. And now, the Final Jeopardy! clue.\n"+
		"The category is `%s`: `%s`\nYou have %d seconds. Good luck.",
		category, clue, secondsToAnswer)
}

// FinalResults renders the resolved final round: the reveal, the ranked
// standings, and the sign-off.
func FinalResults(answer string, standings []domain.FinalStanding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Let's see how our finalists did. The correct answer was `%s`.\n\n", answer)
	for i, s := range standings {
		fmt.Fprintf(&b, "%d. %s: %s (wagered %s)\n", i+1, s.Name, Currency(s.Total), Currency(s.Wager))
	}
	b.WriteString("\n" + Farewell())
	return b.String()
}

// Farewell is the game-over sign-off.
func Farewell() string {
	return "Thank you for being with us. Goodnight everybody."
}

// Help lists the commands. Keep this in sync when adding commands.
func Help(botName string, secondsToAnswer int) string {
	return fmt.Sprintf("Type `%[1]s jeopardy me` to start a new round of Jeopardy. I will pick the category and price. Anyone in the channel can respond.\n"+
		"Type `%[1]s let's play` or `%[1]s show the categories` to see a list of the remaining categories or create a new set of categories.\n"+
		"Type `%[1]s [what|where|who] [is|are] [answer]?` to respond to the active round. You have %[2]d seconds to answer. Remember, responses must be in the form of a question, e.g. `%[1]s what is dirt?`.\n"+
		"Type `%[1]s I'll take [category] for [value]` to start a new round with one of the existing categories.\n"+
		"Type `%[1]s I wager [amount]` to place your Final Jeopardy! wager.\n"+
		"Type `%[1]s what is my score` to see your current score.\n"+
		"Type `%[1]s show the leaderboard` to see the top scores.\n"+
		"Type `%[1]s show the loserboard` to see the bottom scores.",
		botName, secondsToAnswer)
}

// Zork is the obligatory easter egg.
func Zork() string {
	return "You are standing in an open field west of a white house, with a boarded front door."
}

// ThrowRefusal turns away thrown objects.
func ThrowRefusal() string {
	return "Do I look like zorkbot to you?"
}

// NoRoundQuote returns an SNL Celebrity Jeopardy line for when someone
// answers with no round in progress.
func NoRoundQuote() string {
	return noRoundQuotes[rand.Intn(len(noRoundQuotes))]
}

// WrongQuote returns a line for an incorrect answer.
func WrongQuote() string {
	return wrongQuotes[rand.Intn(len(wrongQuotes))]
}

// WrongScoreQuote returns the lead-in before a penalized score.
func WrongScoreQuote() string {
	return wrongScoreQuotes[rand.Intn(len(wrongScoreQuotes))]
}

var noRoundQuotes = []string{
	"Welcome back to Jeopardy. Before we begin this Jeopardy round, I'd like to ask our contestants once again to please refrain from using ethnic slurs.",
	"Okay, Turd Ferguson.",
	"I hate my job.",
	"Let's just get this over with.",
	"Do you have an answer?",
	"I don't believe this. Where did you get that magic marker? We frisked you on the way in here.",
	"What a ride it has been, but boy, oh boy, these contestants did not know the right answers to any of the questions.",
	"Back off. I don't have to take that from you.",
	"That is _awful_.",
	"Okay, for the sake of tradition, let's take a look at the answers.",
	"Beautiful. Just beautiful.",
	"And welcome back to Jeopardy. Because of what just happened before during the commercial, I'd like to apologize to all blind people and children.",
	"Thank you, thank you. Moving on.",
	"I really thought that was going to work.",
	"Wonderful. Let's take a look at the categories. They are: `Potent Potables`, `Point to your own head`, `Letters or Numbers`, `Will this hurt if you put it in your mouth`, `An album cover`, `Make any noise`, and finally, `Famous Muppet Frogs`. I should add that the answer to every question in that category is `Kermit`.",
	"For the last time, that is not a category.",
	"Unbelievable.",
	"Great. Let's take a look at the final board. And the categories are: `Potent Potables`, `Sharp Things`, `Movies That Start with the Word Jaws`, `A Petit Déjeuner` -- that category is about French phrases, so let's just skip it.",
	"Enough. Let's just get this over with. Here are the categories, they are: `Potent Potables`, `Countries Between Mexico and Canada`, `Members of Simon and Garfunkel`, `I Have a Chardonnay` -- you choose this category, you automatically get the points and I get to have a glass of wine -- `Things You Do With a Pencil Sharpener`, `Tie Your Shoe`, and finally, `Toast`.",
	"Better luck to all of you, in the next round. It's time for Jeopardy, let's take a look at the board. And the categories are: `Potent Potables`, `Literature` -- which is just a big word for books -- `Therapists`, `Current U.S. Presidents`, `Show and Tell`, `Household Objects`, and finally, `One-Letter Words`.",
	"Uh, I see. Get back to your podium.",
	"You look pretty sure of yourself. Think you've got the right answer?",
	"Welcome back to Jeopardy. We've got a real barnburner on our hands here.",
	"And welcome back to Jeopardy. I'd like to once again remind our contestants that there are proper bathroom facilities located in the studio.",
	"Welcome back to Jeopardy. Once again, I'm going to recommend that our viewers watch something else.",
	"Great. Better luck to all of you in the next round. It's time for Jeopardy. Let's take a look at the board. And the categories are: `Potent Potables`, `The Vowels`, `Presidents Who Are On the One Dollar Bill`, `Famous Titles`, `Ponies`, `The Number 10`, and finally: `Foods That End In \"Amburger\"`.",
	"Let's take a look at the board. The categories are: `Potent Potables`, `The Pen is Mightier` -- that category is all about quotes from famous authors, so you'll all probably be more comfortable with our next category -- `Shiny Objects`, continuing with `Opposites`, `Things you Shouldn't Put in Your Mouth`, `What Time is It?`, and, finally, `Months That Start With Feb`.",
}

var wrongScoreQuotes = []string{
	"Your score is now",
	"That brings you down to",
	"How much does that leave you with now?  Oh yes,",
	"How much did you wager?  Ouch.  Well at least you have",
}

var wrongQuotes = []string{
	"You're fast on the button, but your brain's not catching up!",
	"Nope.  It will be goodbye for you today.",
	"Ah, if only you had been able to accumulate more money.",
	"You were having difficulties with that signaling device.  I saw.  You won't be around for Final Jeopardy!",
	"It's a shame you weren't faster on the signaling button in earlier rounds.",
	"It's been happening a lot lately.  Two of the players get off to a good start, and you start off badly.",
	"Sorry, Nope.  That's wrong.",
	"You made a common error there.",
	"Let me see if I can make you feel better. It's incorrect.",
	"You've been up and down.  Mostly down.",
	"Maybe the categories didn't agree with you last round.  Perhaps you will like them better in this round.",
	"That is incorrect.  And I think you suspected that was wrong.",
	"Ooh, drawing a blank.  That'll cost you.",
	"Yeah.  Incorrect.  You should have stuck with your original thought.",
	"You know what they have to do in this Double Jeopardy! round.  First you have to get yourself out of the hole.",
	"We have to penalize you and once again you are in a negative situation.",
	"The way you said that is exactly the way a contestant on Wheel of Fortune would say it.",
	"Nope.  Not good enough.  Not gonna help you.",
	"Sorry, that ain't gonna do it.",
	"You weren't able to come up with a correct response.",
	"Two words of advice: get serious.",
	"I feared some of you might put that down.  That is incorrect.",
	"Well, THAT narrows it down.",
	"It's very important in life to know when to shut up. You should not be afraid of silence.",
	"Hahahahaha... No.",
	"They teach you that in school in Utah, huh?",
}
