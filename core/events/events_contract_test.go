package events

import (
	"testing"
	"time"

	"github.com/koscakluka/ema-voicecode/core/messages"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "turn state changed", event: NewTurnStateChanged(1, "Idle", "Listening"), expected: KindTurnStateChanged},
		{name: "turn started", event: NewTurnStarted(1, "list files"), expected: KindTurnStarted},
		{name: "turn completed", event: NewTurnCompleted(1, false, 2), expected: KindTurnCompleted},
		{name: "user speech started", event: NewUserSpeechStarted(1), expected: KindUserSpeechStarted},
		{name: "user utterance captured", event: NewUserUtteranceCaptured(1, time.Second), expected: KindUserUtteranceCaptured},
		{name: "user transcript partial", event: NewUserTranscriptPartial(1, "text"), expected: KindUserTranscriptPartial},
		{name: "user transcript final", event: NewUserTranscriptFinal(1, "text"), expected: KindUserTranscriptFinal},
		{name: "command recognized", event: NewCommandRecognized(1, "stop", "Stop."), expected: KindCommandRecognized},
		{name: "assistant message", event: NewAssistantMessage(1, messages.Message{Kind: messages.KindAssistant}), expected: KindAssistantMessage},
		{name: "speech fragment queued", event: NewSpeechFragmentQueued(1, "hi", messages.KindAssistant), expected: KindSpeechFragmentQueued},
		{name: "speech fragment spoken", event: NewSpeechFragmentSpoken(1, "hi", false), expected: KindSpeechFragmentSpoken},
		{name: "interruption detected", event: NewInterruptionDetected(1, InterruptionSourceBargeIn, 0.4), expected: KindInterruptionDetected},
		{name: "session reset", event: NewSessionReset(0, "id"), expected: KindSessionReset},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestBaseCarriesTurnAndTimestamp(t *testing.T) {
	before := time.Now()
	event := NewTurnStarted(7, "run the tests")

	if event.Turn() != 7 {
		t.Fatalf("expected turn 7, got %d", event.Turn())
	}
	if event.Timestamp().Before(before) {
		t.Fatalf("expected timestamp after %v, got %v", before, event.Timestamp())
	}
}
