package domain

const (
	EventNameQuestionExpired    = "round.question.expired"
	EventNameBoardExhausted     = "board.exhausted"
	EventNameGameEnded          = "game.ended"
	EventNameFinalRoundStarted  = "final.started"
	EventNameFinalRoundResolved = "final.resolved"
)

// EventQuestionExpired fires when the answer window of the active question
// closes without a correct response.
type EventQuestionExpired struct {
	ChannelID string
	Question  Question
}

func (EventQuestionExpired) Name() string { return EventNameQuestionExpired }

// EventBoardExhausted fires once the last question taken from the board
// has been resolved (answered or expired), never while it is still open.
type EventBoardExhausted struct {
	ChannelID string
}

func (EventBoardExhausted) Name() string { return EventNameBoardExhausted }

// EventGameEnded carries the farewell standings pushed to the channel
// after a full game reset.
type EventGameEnded struct {
	ChannelID string
	Standings string
}

func (EventGameEnded) Name() string { return EventNameGameEnded }

type EventFinalRoundStarted struct {
	ChannelID string
	Category  string
	Finalists []Finalist
}

func (EventFinalRoundStarted) Name() string { return EventNameFinalRoundStarted }

type EventFinalRoundResolved struct {
	ChannelID string
	Answer    string
	Standings []FinalStanding
}

func (EventFinalRoundResolved) Name() string { return EventNameFinalRoundResolved }
