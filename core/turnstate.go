package orchestration

import "sync/atomic"

type TurnState int32

const (
	StateIdle TurnState = iota
	StateListening
	StateProcessing
	StateExecuting
	StateSpeaking
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateListening:
		return "Listening"
	case StateProcessing:
		return "Processing"
	case StateExecuting:
		return "Executing"
	case StateSpeaking:
		return "Speaking"
	default:
		return "Unknown"
	}
}

// InterruptFlag is set by barge-in or an explicit interrupt and cleared only
// when the next turn starts executing.
type InterruptFlag struct {
	set atomic.Bool
}

// Set raises the flag and reports whether this call raised it.
func (f *InterruptFlag) Set() bool { return !f.set.Swap(true) }
func (f *InterruptFlag) IsSet() bool { return f.set.Load() }
func (f *InterruptFlag) Clear()      { f.set.Store(false) }

func turnStateFromString(name string) TurnState {
	for state := StateIdle; state <= StateSpeaking; state++ {
		if state.String() == name {
			return state
		}
	}
	return StateIdle
}
