package events

const (
	KindTurnStateChanged Kind = "turn_state.changed"
	KindTurnStarted      Kind = "turn_state.started"
	KindTurnCompleted    Kind = "turn_state.completed"
)

// TurnStateChanged reports a state machine transition. States are carried by
// name.
type TurnStateChanged struct {
	Base
	From string
	To   string
}

func NewTurnStateChanged(turn int, from, to string) TurnStateChanged {
	return TurnStateChanged{Base: NewBase(KindTurnStateChanged, turn), From: from, To: to}
}

// TurnStarted marks the prompt being handed to the assistant.
type TurnStarted struct {
	Base
	Prompt string
}

func NewTurnStarted(turn int, prompt string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted, turn), Prompt: prompt}
}

type TurnCompleted struct {
	Base
	Interrupted bool
	// Spoken is how many fragments were played.
	Spoken int
}

func NewTurnCompleted(turn int, interrupted bool, spoken int) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted, turn), Interrupted: interrupted, Spoken: spoken}
}
