package events

const (
	KindInterruptionDetected Kind = "interruption.detected"
	KindSessionReset         Kind = "session.reset"
)

const (
	InterruptionSourceBargeIn = "barge_in"
	InterruptionSourceManual  = "manual"
)

type InterruptionDetected struct {
	Base
	Source string
	// Level is the input RMS that triggered a barge-in, zero otherwise.
	Level float64
}

func NewInterruptionDetected(turn int, source string, level float64) InterruptionDetected {
	return InterruptionDetected{Base: NewBase(KindInterruptionDetected, turn), Source: source, Level: level}
}

type SessionReset struct {
	Base
	SessionID string
}

func NewSessionReset(turn int, sessionID string) SessionReset {
	return SessionReset{Base: NewBase(KindSessionReset, turn), SessionID: sessionID}
}
