package speechtotext

type TranscriptionOptions struct {
	// PartialTranscriptionCallback receives each finalized segment as it
	// arrives, before the whole utterance is transcribed.
	PartialTranscriptionCallback func(transcript string)
}

type TranscriptionOption func(*TranscriptionOptions)

func WithPartialTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.PartialTranscriptionCallback = callback
	}
}
