package events

import "github.com/koscakluka/ema-voicecode/core/messages"

const (
	KindAssistantMessage     Kind = "assistant_response.message"
	KindSpeechFragmentQueued Kind = "assistant_speech.fragment_queued"
	KindSpeechFragmentSpoken Kind = "assistant_speech.fragment_spoken"
)

type AssistantMessage struct {
	Base
	Message messages.Message
}

func NewAssistantMessage(turn int, message messages.Message) AssistantMessage {
	return AssistantMessage{Base: NewBase(KindAssistantMessage, turn), Message: message}
}

type SpeechFragmentQueued struct {
	Base
	Text        string
	MessageKind messages.Kind
}

func NewSpeechFragmentQueued(turn int, text string, kind messages.Kind) SpeechFragmentQueued {
	return SpeechFragmentQueued{Base: NewBase(KindSpeechFragmentQueued, turn), Text: text, MessageKind: kind}
}

// SpeechFragmentSpoken is emitted after a fragment's playback ends. Cut is
// set when playback was stopped before the fragment finished.
type SpeechFragmentSpoken struct {
	Base
	Text string
	Cut  bool
}

func NewSpeechFragmentSpoken(turn int, text string, cut bool) SpeechFragmentSpoken {
	return SpeechFragmentSpoken{Base: NewBase(KindSpeechFragmentSpoken, turn), Text: text, Cut: cut}
}
