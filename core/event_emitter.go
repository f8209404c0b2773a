package orchestration

import (
	"github.com/koscakluka/ema-voicecode/core/events"
	"github.com/koscakluka/ema-voicecode/core/speech"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// newCallbackEventEmitter routes events to the specific observer callbacks and
// then to the generic handler.
func newCallbackEventEmitter(opts observers) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.TurnStateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(turnStateFromString(typedEvent.From), turnStateFromString(typedEvent.To))
			}
		case events.UserTranscriptFinal:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript)
			}
		case events.AssistantMessage:
			if opts.onMessage != nil {
				opts.onMessage(typedEvent.Message)
			}
		case events.SpeechFragmentQueued:
			if opts.onFragment != nil {
				opts.onFragment(speech.Fragment{Text: typedEvent.Text, Kind: typedEvent.MessageKind})
			}
		case events.InterruptionDetected:
			if opts.onInterruption != nil {
				opts.onInterruption()
			}
		}

		if opts.onEvent != nil {
			opts.onEvent(event)
		}
	}
}
