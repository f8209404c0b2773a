package orchestration

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-voicecode/core/assistant"
	"github.com/koscakluka/ema-voicecode/core/audio"
	"github.com/koscakluka/ema-voicecode/core/messages"
	"github.com/koscakluka/ema-voicecode/core/speech"
	"github.com/koscakluka/ema-voicecode/core/speechtotext"
)

// captureStub hands out one utterance per transcript and then blocks until
// the context ends.
type captureStub struct {
	utterances chan *audio.Utterance
	errs       chan error
	frames     chan []byte
	calls      atomic.Int32
}

func newCaptureStub(count int) *captureStub {
	c := &captureStub{
		utterances: make(chan *audio.Utterance, count),
		errs:       make(chan error, 4),
		frames:     make(chan []byte, 16),
	}
	for range count {
		c.utterances <- audio.NewUtterance(make([]byte, 3200), audio.GetDefaultEncodingInfo())
	}
	return c
}

func (c *captureStub) Start(context.Context) {}

func (c *captureStub) Capture(ctx context.Context, onSpeechStarted func()) (*audio.Utterance, error) {
	c.calls.Add(1)
	select {
	case err := <-c.errs:
		return nil, err
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case utterance := <-c.utterances:
		if onSpeechStarted != nil {
			onSpeechStarted()
		}
		return utterance, nil
	}
}

func (c *captureStub) Frames() <-chan []byte { return c.frames }

// waitForCaptures blocks until the loop has asked for at least n utterances.
func waitForCaptures(t *testing.T, c *captureStub, n int32) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for c.calls.Load() < n {
		select {
		case <-deadline:
			t.Fatalf("expected at least %d captures, got %d", n, c.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// transcriberStub returns the scripted transcripts in order.
type transcriberStub struct {
	mu          sync.Mutex
	transcripts []string
}

func (s *transcriberStub) Transcribe(ctx context.Context, utterance *audio.Utterance, opts ...speechtotext.TranscriptionOption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.transcripts) == 0 {
		return "", nil
	}
	transcript := s.transcripts[0]
	s.transcripts = s.transcripts[1:]

	var options speechtotext.TranscriptionOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.PartialTranscriptionCallback != nil && transcript != "" {
		options.PartialTranscriptionCallback(transcript)
	}
	return transcript, nil
}

// assistantStub replays scripted lines. With hold set it blocks after the
// lines until cancelled, like a long running invocation.
type assistantStub struct {
	mu        sync.Mutex
	lines     []messages.Raw
	hold      bool
	prompts   []string
	cancels   int
	resets    int
	cancelled chan struct{}
}

func newAssistantStub(lines ...messages.Raw) *assistantStub {
	return &assistantStub{lines: lines, cancelled: make(chan struct{})}
}

func (a *assistantStub) Execute(ctx context.Context, prompt string) iter.Seq[messages.Raw] {
	return func(yield func(messages.Raw) bool) {
		a.mu.Lock()
		a.prompts = append(a.prompts, prompt)
		lines := a.lines
		hold := a.hold
		cancelled := a.cancelled
		a.mu.Unlock()

		for _, line := range lines {
			select {
			case <-cancelled:
				return
			default:
			}
			if !yield(line) {
				return
			}
		}
		if hold {
			select {
			case <-ctx.Done():
			case <-cancelled:
			}
		}
	}
}

func (a *assistantStub) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancels++
	select {
	case <-a.cancelled:
	default:
		close(a.cancelled)
	}
}

func (a *assistantStub) ResetSession() assistant.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resets++
	return assistant.Session{ID: "session-2"}
}

func (a *assistantStub) promptCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.prompts)
}

func (a *assistantStub) cancelCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancels
}

func (a *assistantStub) resetCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resets
}

// speakerStub records fragments. Texts listed in block play until their
// context is cancelled.
type speakerStub struct {
	mu      sync.Mutex
	spoken  []string
	block   map[string]bool
	started chan string
}

func newSpeakerStub(block ...string) *speakerStub {
	s := &speakerStub{block: map[string]bool{}, started: make(chan string, 16)}
	for _, text := range block {
		s.block[text] = true
	}
	return s
}

func (s *speakerStub) Speak(ctx context.Context, fragment speech.Fragment) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, fragment.Text)
	blocking := s.block[fragment.Text]
	s.mu.Unlock()
	s.started <- fragment.Text

	if blocking {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return nil
}

func (s *speakerStub) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func assistantLine(text string) messages.Raw {
	return messages.Raw{
		"type": "assistant",
		"message": map[string]any{
			"content": []any{map[string]any{"type": "text", "text": text}},
		},
	}
}

func resultLine(text string) messages.Raw {
	return messages.Raw{"type": "result", "result": text}
}

func loudFrame() []byte {
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = 20000
		if i%2 == 1 {
			samples[i] = -20000
		}
	}
	return audio.SamplesToBytes(samples)
}

func runWithTimeout(o *Orchestrator, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		o.Stop()
		<-done
		return context.DeadlineExceeded
	}
}
