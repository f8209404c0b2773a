package speech

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Speaker plays one fragment and returns once it finished playing or ctx was
// cancelled.
type Speaker interface {
	Speak(ctx context.Context, fragment Fragment) error
}

type SpeakerFunc func(ctx context.Context, fragment Fragment) error

func (f SpeakerFunc) Speak(ctx context.Context, fragment Fragment) error { return f(ctx, fragment) }

// RunPlaybackLoop speaks fragments strictly in queue order, one at a time,
// until the queue is closed and drained. interrupted is checked before and
// after every fragment; once it reports true the rest of the queue is
// discarded and the loop returns. Speaker errors are logged and the loop
// moves on to the next fragment. The only error returned is ctx's.
func RunPlaybackLoop(ctx context.Context, queue *Queue, speaker Speaker, interrupted func() bool) error {
	if interrupted == nil {
		interrupted = func() bool { return false }
	}

	for {
		fragment, ok := queue.Next(ctx)
		if !ok {
			return ctx.Err()
		}

		if interrupted() {
			discardRemaining(queue)
			return nil
		}

		speak(ctx, speaker, fragment)

		if interrupted() {
			discardRemaining(queue)
			return nil
		}
	}
}

func speak(ctx context.Context, speaker Speaker, fragment Fragment) {
	ctx, span := tracer.Start(ctx, "speak fragment")
	defer span.End()
	span.SetAttributes(
		attribute.String("fragment.kind", fragment.Kind.String()),
		attribute.Int("fragment.length", len(fragment.Text)),
	)

	if err := speaker.Speak(ctx, fragment); err != nil && ctx.Err() == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("failed to speak fragment", "error", err, "kind", fragment.Kind.String())
	}
}

func discardRemaining(queue *Queue) {
	if n := queue.Discard(); n > 0 {
		logger.Debug("discarded queued fragments after interruption", "count", n)
	}
}
