package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/koscakluka/ema-voicecode/core/audio"
	"github.com/koscakluka/ema-voicecode/core/events"
	"github.com/koscakluka/ema-voicecode/core/messages"
	"github.com/koscakluka/ema-voicecode/core/speech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// turn is the state of one executed prompt. It lives from Executing until the
// playback of its last fragment ended.
type turn struct {
	number int
	flag   *InterruptFlag

	unitMu sync.Mutex
	// cancelUnit stops the fragment currently playing
	cancelUnit context.CancelFunc

	spoken int
}

// beginUnit registers the playback unit context. It returns false when the
// turn was already interrupted and nothing may be played.
func (t *turn) beginUnit(cancel context.CancelFunc) bool {
	t.unitMu.Lock()
	defer t.unitMu.Unlock()
	if t.flag.IsSet() {
		return false
	}
	t.cancelUnit = cancel
	return true
}

func (t *turn) endUnit() {
	t.unitMu.Lock()
	defer t.unitMu.Unlock()
	t.cancelUnit = nil
	t.spoken++
}

func (t *turn) stopUnit() {
	t.unitMu.Lock()
	defer t.unitMu.Unlock()
	if t.cancelUnit != nil {
		t.cancelUnit()
	}
}

// speaker plays each fragment on its own cancellable context.
func (t *turn) speaker(o *Orchestrator) speech.Speaker {
	return speech.SpeakerFunc(func(ctx context.Context, fragment speech.Fragment) error {
		unitCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if !t.beginUnit(cancel) {
			return nil
		}
		defer t.endUnit()

		o.setState(StateSpeaking)
		err := o.speaker.Speak(unitCtx, fragment)
		o.emit(events.NewSpeechFragmentSpoken(t.number, fragment.Text, unitCtx.Err() != nil))
		if unitCtx.Err() != nil && ctx.Err() == nil {
			return nil
		}
		return err
	})
}

// execute runs prompt through the assistant and speaks the response.
// Streaming, playback and barge-in detection run concurrently; the turn ends
// when playback finished or was interrupted.
func (o *Orchestrator) execute(ctx context.Context, prompt string) {
	o.flag.Clear()
	t := &turn{number: o.nextTurn(), flag: &o.flag}
	o.setActiveTurn(t)
	defer o.setActiveTurn(nil)

	ctx, span := tracer.Start(ctx, "execute turn",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("turn.number", t.number)),
	)
	defer span.End()

	o.setState(StateExecuting)
	o.emit(events.NewTurnStarted(t.number, prompt))

	queue := speech.NewQueue()
	g, gctx := errgroup.WithContext(ctx)
	watchCtx, stopWatching := context.WithCancel(gctx)
	defer stopWatching()

	g.Go(panicSafeNamedWorker("stream", func(ctx context.Context) error {
		defer queue.Close()
		o.stream(ctx, t, prompt, queue)
		return nil
	}).bind(gctx))
	g.Go(panicSafeNamedWorker("playback", func(ctx context.Context) error {
		defer stopWatching()
		err := speech.RunPlaybackLoop(ctx, queue, t.speaker(o), o.flag.IsSet)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}).bind(gctx))
	g.Go(panicSafeNamedWorker("barge-in", func(ctx context.Context) error {
		o.watchBargeIn(ctx, t)
		return nil
	}).bind(watchCtx))

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("turn failed", "error", err, "turn", t.number)
	}

	interrupted := o.flag.IsSet()
	span.SetAttributes(
		attribute.Bool("turn.interrupted", interrupted),
		attribute.Int("turn.spoken_fragments", t.spoken),
	)
	o.emit(events.NewTurnCompleted(t.number, interrupted, t.spoken))
}

// stream iterates the assistant output in arrival order and queues what
// should be spoken. It stops and cancels the assistant once the turn is
// interrupted.
func (o *Orchestrator) stream(ctx context.Context, t *turn, prompt string, queue *speech.Queue) {
	var lastQueued string
	enqueue := func(fragment speech.Fragment) {
		if queue.Push(fragment) {
			lastQueued = fragment.Text
			o.emit(events.NewSpeechFragmentQueued(t.number, fragment.Text, fragment.Kind))
		}
	}

	for raw := range o.assistant.Execute(ctx, prompt) {
		if o.flag.IsSet() {
			o.assistant.Cancel()
			break
		}

		msg := messages.Normalize(raw)
		o.emit(events.NewAssistantMessage(t.number, msg))

		fragment, ok := o.summarizer.ToSpeech(msg)
		if ok && msg.Kind == messages.KindResult && strings.EqualFold(fragment.Text, lastQueued) {
			// the final result repeats the last assistant text
			ok = false
		}
		if ok {
			enqueue(fragment)
		}
		if msg.Kind == messages.KindError && msg.FromBridge() {
			enqueue(speech.Fragment{Text: o.config.Apology, Kind: messages.KindError})
		}
	}
}

// watchBargeIn samples capture frames while fragments are playing and
// interrupts the turn when the input is loud enough to be the user talking
// over the output.
func (o *Orchestrator) watchBargeIn(ctx context.Context, t *turn) {
	if o.capture == nil {
		return
	}
	threshold := o.config.VADThreshold * o.config.BargeInMultiplier
	frames := o.capture.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if o.State() != StateSpeaking {
				continue
			}
			if level := audio.RMS(frame); level > threshold {
				logger.Debug("barge-in detected", "level", level, "threshold", threshold, "turn", t.number)
				o.interrupt(events.InterruptionSourceBargeIn, level)
				return
			}
		}
	}
}
