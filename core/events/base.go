package events

import "time"

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
	// Turn is the number of the turn the event belongs to, zero outside of
	// any turn.
	Turn() int
}

type Base struct {
	kind      Kind
	timestamp time.Time
	turn      int
}

func NewBase(kind Kind, turn int) Base {
	return Base{kind: kind, timestamp: time.Now(), turn: turn}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.timestamp }
func (b Base) Turn() int            { return b.turn }
