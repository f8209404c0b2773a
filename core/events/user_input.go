package events

import "time"

const (
	KindUserSpeechStarted     Kind = "user_input.speech_started"
	KindUserUtteranceCaptured Kind = "user_input.utterance_captured"
	KindUserTranscriptPartial Kind = "user_input.transcript_partial"
	KindUserTranscriptFinal   Kind = "user_input.transcript_final"
)

type UserSpeechStarted struct{ Base }

func NewUserSpeechStarted(turn int) UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted, turn)}
}

type UserUtteranceCaptured struct {
	Base
	Duration time.Duration
}

func NewUserUtteranceCaptured(turn int, duration time.Duration) UserUtteranceCaptured {
	return UserUtteranceCaptured{Base: NewBase(KindUserUtteranceCaptured, turn), Duration: duration}
}

// UserTranscriptPartial carries one finalized segment of an utterance that is
// still being transcribed.
type UserTranscriptPartial struct {
	Base
	Segment string
}

func NewUserTranscriptPartial(turn int, segment string) UserTranscriptPartial {
	return UserTranscriptPartial{Base: NewBase(KindUserTranscriptPartial, turn), Segment: segment}
}

// UserTranscriptFinal carries the trimmed transcript of one utterance. Empty
// transcripts are not reported.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

func NewUserTranscriptFinal(turn int, transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal, turn), Transcript: transcript}
}
