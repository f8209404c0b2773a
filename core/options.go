package orchestration

import (
	"context"
	"iter"
	"time"

	"github.com/koscakluka/ema-voicecode/core/assistant"
	"github.com/koscakluka/ema-voicecode/core/audio"
	"github.com/koscakluka/ema-voicecode/core/events"
	"github.com/koscakluka/ema-voicecode/core/messages"
	"github.com/koscakluka/ema-voicecode/core/speech"
	"github.com/koscakluka/ema-voicecode/core/speechtotext"
	"github.com/koscakluka/ema-voicecode/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

// AudioCapture produces utterances and exposes its raw frames for barge-in
// detection while no utterance is being captured.
type AudioCapture interface {
	Start(ctx context.Context)
	Capture(ctx context.Context, onSpeechStarted func()) (*audio.Utterance, error)
	Frames() <-chan []byte
}

func WithAudioCapture(capture AudioCapture) OrchestratorOption {
	return func(o *Orchestrator) { o.capture = capture }
}

type SpeechToText interface {
	Transcribe(ctx context.Context, utterance *audio.Utterance, opts ...speechtotext.TranscriptionOption) (string, error)
}

func WithSpeechToText(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText = client }
}

type Assistant interface {
	Execute(ctx context.Context, prompt string) iter.Seq[messages.Raw]
	Cancel()
	ResetSession() assistant.Session
}

func WithAssistant(client Assistant) OrchestratorOption {
	return func(o *Orchestrator) { o.assistant = client }
}

// AudioOutput plays audio and confirms playback through marks. Clearing the
// buffer must release pending marks.
type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
	Mark(mark string, callback func(string)) error
}

func WithAudioOutput(client AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioOutput.Set(client) }
}

func WithSynthesizer(synthesizer texttospeech.Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.synthesizer = synthesizer }
}

// WithSpeaker replaces synthesis and output with a custom fragment player.
func WithSpeaker(speaker speech.Speaker) OrchestratorOption {
	return func(o *Orchestrator) { o.speaker = speaker }
}

func WithSpeechConfig(config speech.Config) OrchestratorOption {
	return func(o *Orchestrator) { o.summarizer = speech.NewSummarizer(config) }
}

type Config struct {
	// VADThreshold is the capture voice activity threshold. Barge-in needs
	// BargeInMultiplier times this level.
	VADThreshold      float64
	BargeInMultiplier float64
	// CaptureRetryDelay is how long to wait after a failed capture.
	CaptureRetryDelay time.Duration

	Farewell             string
	ResetAcknowledgement string
	Apology              string
}

func DefaultConfig() Config {
	return Config{
		VADThreshold:         audio.DefaultVADThreshold,
		BargeInMultiplier:    3,
		CaptureRetryDelay:    500 * time.Millisecond,
		Farewell:             "Goodbye!",
		ResetAcknowledgement: "Starting a new conversation.",
		Apology:              "Sorry, I couldn't finish that.",
	}
}

func WithConfig(config Config) OrchestratorOption {
	return func(o *Orchestrator) {
		defaults := DefaultConfig()
		if config.VADThreshold <= 0 {
			config.VADThreshold = defaults.VADThreshold
		}
		if config.BargeInMultiplier <= 0 {
			config.BargeInMultiplier = defaults.BargeInMultiplier
		}
		if config.CaptureRetryDelay <= 0 {
			config.CaptureRetryDelay = defaults.CaptureRetryDelay
		}
		if config.Farewell == "" {
			config.Farewell = defaults.Farewell
		}
		if config.ResetAcknowledgement == "" {
			config.ResetAcknowledgement = defaults.ResetAcknowledgement
		}
		if config.Apology == "" {
			config.Apology = defaults.Apology
		}
		o.config = config
	}
}

type observers struct {
	onStateChanged  func(from, to TurnState)
	onTranscription func(transcript string)
	onFragment      func(fragment speech.Fragment)
	onMessage       func(message messages.Message)
	onInterruption  func()
	onEvent         func(events.Event)
}

func WithStateChangedCallback(callback func(from, to TurnState)) OrchestratorOption {
	return func(o *Orchestrator) { o.observers.onStateChanged = callback }
}

func WithTranscriptionCallback(callback func(transcript string)) OrchestratorOption {
	return func(o *Orchestrator) { o.observers.onTranscription = callback }
}

// WithFragmentCallback is called for every fragment queued for playback.
func WithFragmentCallback(callback func(fragment speech.Fragment)) OrchestratorOption {
	return func(o *Orchestrator) { o.observers.onFragment = callback }
}

func WithMessageCallback(callback func(message messages.Message)) OrchestratorOption {
	return func(o *Orchestrator) { o.observers.onMessage = callback }
}

func WithInterruptionCallback(callback func()) OrchestratorOption {
	return func(o *Orchestrator) { o.observers.onInterruption = callback }
}

// WithEventHandler receives every event, after the specific callbacks.
func WithEventHandler(handler func(events.Event)) OrchestratorOption {
	return func(o *Orchestrator) { o.observers.onEvent = handler }
}
