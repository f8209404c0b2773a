package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-voicecode/core/audio"
	"github.com/koscakluka/ema-voicecode/core/events"
	"github.com/koscakluka/ema-voicecode/core/messages"
	"github.com/koscakluka/ema-voicecode/core/speech"
	"github.com/koscakluka/ema-voicecode/core/speechtotext"
	"github.com/koscakluka/ema-voicecode/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrAlreadyRunning = errors.New("orchestrator is already running")
	ErrNotConfigured  = errors.New("orchestrator is missing a required component")
)

// Orchestrator drives the voice turn loop: capture an utterance, transcribe
// it, dispatch voice commands or run the assistant, and speak the response.
type Orchestrator struct {
	config Config

	capture      AudioCapture
	speechToText SpeechToText
	assistant    Assistant
	synthesizer  texttospeech.Synthesizer
	audioOutput  audioOutput
	speaker      speech.Speaker
	summarizer   *speech.Summarizer

	observers observers
	emit      eventEmitter

	state   atomic.Int32
	stateMu sync.Mutex
	flag    InterruptFlag
	turns   atomic.Int64

	activeMu   sync.Mutex
	activeTurn *turn

	running   atomic.Bool
	runMu     sync.Mutex
	cancelRun context.CancelFunc
	stopped   bool
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		config:     DefaultConfig(),
		summarizer: speech.NewSummarizer(speech.DefaultConfig()),
		emit:       noopEventEmitter,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.speaker == nil {
		o.speaker = newSynthSpeaker(o.synthesizer, &o.audioOutput)
	}
	o.emit = newCallbackEventEmitter(o.observers)
	return o
}

// Run executes the turn loop until a quit phrase is recognized, Stop is
// called or ctx is cancelled; all three return nil. Failures inside a turn
// are logged and the loop goes back to listening.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.capture == nil || o.speechToText == nil || o.assistant == nil {
		return ErrNotConfigured
	}
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !o.setRunCancel(cancel) {
		return nil
	}
	defer o.setRunCancel(nil)
	defer o.assistant.Cancel()
	defer o.setState(StateIdle)

	o.capture.Start(ctx)
	logger.Info("voice loop started")
	for ctx.Err() == nil {
		if quit := o.listen(ctx); quit {
			logger.Info("voice loop ended by quit command")
			return nil
		}
	}
	logger.Info("voice loop stopped")
	return nil
}

// listen runs a single pass of the loop and reports whether the user asked
// to quit. The loop waits in Idle and moves to Listening once speech starts.
func (o *Orchestrator) listen(ctx context.Context) bool {
	turn := int(o.turns.Load()) + 1
	utterance, err := o.capture.Capture(ctx, func() {
		o.setState(StateListening)
		o.emit(events.NewUserSpeechStarted(turn))
	})
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("audio capture failed", "error", err)
			o.setState(StateIdle)
			sleepContext(ctx, o.config.CaptureRetryDelay)
		}
		return false
	}
	if utterance == nil {
		o.setState(StateIdle)
		return false
	}
	o.emit(events.NewUserUtteranceCaptured(turn, utterance.Duration()))

	o.setState(StateProcessing)
	transcript, err := o.transcribe(ctx, turn, utterance)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("transcription failed", "error", err)
		}
		o.setState(StateIdle)
		return false
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		logger.Debug("no speech detected in utterance", "duration", utterance.Duration())
		o.setState(StateIdle)
		return false
	}
	o.emit(events.NewUserTranscriptFinal(turn, transcript))

	switch cmd := classifyCommand(transcript); cmd {
	case commandQuit:
		o.emit(events.NewCommandRecognized(turn, cmd.String(), transcript))
		o.say(ctx, o.config.Farewell)
		return true
	case commandReset:
		o.emit(events.NewCommandRecognized(turn, cmd.String(), transcript))
		session := o.assistant.ResetSession()
		o.emit(events.NewSessionReset(turn, session.ID))
		o.say(ctx, o.config.ResetAcknowledgement)
	case commandStop:
		o.emit(events.NewCommandRecognized(turn, cmd.String(), transcript))
		o.assistant.Cancel()
	default:
		o.execute(ctx, transcript)
	}
	o.setState(StateIdle)
	return false
}

// transcribe runs the speech to text call off the loop goroutine so the loop
// can give up on it when ctx ends.
func (o *Orchestrator) transcribe(ctx context.Context, turn int, utterance *audio.Utterance) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe utterance")
	defer span.End()
	span.SetAttributes(attribute.Float64("utterance.duration_seconds", utterance.Duration().Seconds()))

	type result struct {
		transcript string
		err        error
	}
	done := make(chan result, 1)
	go func() {
		transcript, err := o.speechToText.Transcribe(ctx, utterance,
			speechtotext.WithPartialTranscriptionCallback(func(segment string) {
				o.emit(events.NewUserTranscriptPartial(turn, segment))
			}),
		)
		done <- result{transcript: transcript, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			span.RecordError(r.err)
			span.SetStatus(codes.Error, r.err.Error())
		}
		return r.transcript, r.err
	}
}

// say speaks a single system line outside of an assistant turn.
func (o *Orchestrator) say(ctx context.Context, text string) {
	o.setState(StateSpeaking)
	fragment := speech.Fragment{Text: text, Kind: messages.KindSystem}
	if err := o.speaker.Speak(ctx, fragment); err != nil && ctx.Err() == nil {
		logger.Warn("failed to speak", "error", err, "text", text)
	}
}

// Interrupt stops the playback of the current turn and cancels the
// assistant, as if the user talked over the response.
func (o *Orchestrator) Interrupt() {
	o.interrupt(events.InterruptionSourceManual, 0)
}

func (o *Orchestrator) interrupt(source string, level float64) {
	if !o.flag.Set() {
		return
	}
	if o.assistant != nil {
		o.assistant.Cancel()
	}
	o.audioOutput.Clear()

	turn := 0
	if t := o.currentTurn(); t != nil {
		t.stopUnit()
		turn = t.number
	}
	o.emit(events.NewInterruptionDetected(turn, source, level))
}

// Stop ends Run: it cancels the loop, the assistant and any playback. It is
// safe to call more than once and before Run.
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	o.stopped = true
	cancel := o.cancelRun
	o.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if o.assistant != nil {
		o.assistant.Cancel()
	}
	if t := o.currentTurn(); t != nil {
		t.stopUnit()
	}
	o.audioOutput.Clear()
}

// State returns the current turn state.
func (o *Orchestrator) State() TurnState {
	return TurnState(o.state.Load())
}

func (o *Orchestrator) setState(state TurnState) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	previous := TurnState(o.state.Swap(int32(state)))
	if previous == state {
		return
	}
	o.emit(events.NewTurnStateChanged(int(o.turns.Load()), previous.String(), state.String()))
}

func (o *Orchestrator) setRunCancel(cancel context.CancelFunc) bool {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.stopped && cancel != nil {
		return false
	}
	o.cancelRun = cancel
	return true
}

func (o *Orchestrator) nextTurn() int {
	return int(o.turns.Add(1))
}

func (o *Orchestrator) setActiveTurn(t *turn) {
	o.activeMu.Lock()
	defer o.activeMu.Unlock()
	o.activeTurn = t
}

func (o *Orchestrator) currentTurn() *turn {
	o.activeMu.Lock()
	defer o.activeMu.Unlock()
	return o.activeTurn
}
