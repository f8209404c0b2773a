package orchestration

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-voicecode/core/events"
	"github.com/koscakluka/ema-voicecode/core/messages"
)

func newTestOrchestrator(transcripts []string, assistant *assistantStub, speaker *speakerStub, opts ...OrchestratorOption) (*Orchestrator, *captureStub) {
	capture := newCaptureStub(len(transcripts))
	opts = append([]OrchestratorOption{
		WithAudioCapture(capture),
		WithSpeechToText(&transcriberStub{transcripts: transcripts}),
		WithAssistant(assistant),
		WithSpeaker(speaker),
	}, opts...)
	return NewOrchestrator(opts...), capture
}

func TestRunEndsOnQuitPhrase(t *testing.T) {
	assistant := newAssistantStub()
	speaker := newSpeakerStub()
	o, _ := newTestOrchestrator([]string{"Goodbye."}, assistant, speaker)

	if err := runWithTimeout(o, 2*time.Second); err != nil {
		t.Fatalf("expected Run to end cleanly on quit, got %v", err)
	}
	if got := speaker.texts(); !slices.Equal(got, []string{"Goodbye!"}) {
		t.Fatalf("expected farewell to be spoken, got %v", got)
	}
	if assistant.promptCount() != 0 {
		t.Fatalf("expected quit not to reach the assistant")
	}
	if o.State() != StateIdle {
		t.Fatalf("expected Idle after Run, got %s", o.State())
	}
}

func TestResetCommandStartsNewSession(t *testing.T) {
	assistant := newAssistantStub()
	speaker := newSpeakerStub()
	var mu sync.Mutex
	var sessions []string
	o, _ := newTestOrchestrator([]string{"Start over.", "bye"}, assistant, speaker,
		WithEventHandler(func(event events.Event) {
			if reset, ok := event.(events.SessionReset); ok {
				mu.Lock()
				sessions = append(sessions, reset.SessionID)
				mu.Unlock()
			}
		}),
	)

	if err := runWithTimeout(o, 2*time.Second); err != nil {
		t.Fatalf("expected Run to end cleanly, got %v", err)
	}
	if assistant.resetCount() != 1 {
		t.Fatalf("expected one session reset, got %d", assistant.resetCount())
	}
	if assistant.promptCount() != 0 {
		t.Fatalf("expected reset not to reach the assistant")
	}
	want := []string{"Starting a new conversation.", "Goodbye!"}
	if got := speaker.texts(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(sessions, []string{"session-2"}) {
		t.Fatalf("expected session reset event, got %v", sessions)
	}
}

func TestStopCommandCancelsWithoutPrompting(t *testing.T) {
	assistant := newAssistantStub()
	speaker := newSpeakerStub()
	o, _ := newTestOrchestrator([]string{"Never mind", "  ", "exit"}, assistant, speaker)

	if err := runWithTimeout(o, 2*time.Second); err != nil {
		t.Fatalf("expected Run to end cleanly, got %v", err)
	}
	if assistant.cancelCount() < 1 {
		t.Fatalf("expected stop command to cancel the assistant")
	}
	if assistant.promptCount() != 0 {
		t.Fatalf("expected stop and blank transcripts not to reach the assistant, got %d prompts", assistant.promptCount())
	}
	if got := speaker.texts(); !slices.Equal(got, []string{"Goodbye!"}) {
		t.Fatalf("expected only the farewell, got %v", got)
	}
}

func TestTurnSpeaksResponseInOrder(t *testing.T) {
	assistant := newAssistantStub(
		messages.Raw{"type": "system", "subtype": "init"},
		assistantLine("Let me look."),
		messages.Raw{"type": "tool_use", "tool": "Read", "input": map[string]any{"file_path": `C:\repo\main.go`}},
		assistantLine("It **prints** hello."),
		resultLine("It prints hello."),
	)
	speaker := newSpeakerStub()

	var mu sync.Mutex
	var states []TurnState
	var transcripts []string
	var kinds []messages.Kind
	o, _ := newTestOrchestrator([]string{"What does main do?", "quit"}, assistant, speaker,
		WithStateChangedCallback(func(from, to TurnState) {
			mu.Lock()
			states = append(states, to)
			mu.Unlock()
		}),
		WithTranscriptionCallback(func(transcript string) {
			mu.Lock()
			transcripts = append(transcripts, transcript)
			mu.Unlock()
		}),
		WithMessageCallback(func(message messages.Message) {
			mu.Lock()
			kinds = append(kinds, message.Kind)
			mu.Unlock()
		}),
	)

	if err := runWithTimeout(o, 2*time.Second); err != nil {
		t.Fatalf("expected Run to end cleanly, got %v", err)
	}

	want := []string{"Let me look.", "Reading main.go", "It prints hello.", "Goodbye!"}
	if got := speaker.texts(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if assistant.promptCount() != 1 {
		t.Fatalf("expected one prompt, got %d", assistant.promptCount())
	}

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(transcripts, []string{"What does main do?", "quit"}) {
		t.Fatalf("unexpected transcripts %v", transcripts)
	}
	wantKinds := []messages.Kind{messages.KindSystem, messages.KindAssistant, messages.KindToolUse, messages.KindAssistant, messages.KindResult}
	if !slices.Equal(kinds, wantKinds) {
		t.Fatalf("expected messages %v, got %v", wantKinds, kinds)
	}
	wantStates := []TurnState{StateListening, StateProcessing, StateExecuting, StateSpeaking, StateIdle}
	if len(states) < len(wantStates) || !slices.Equal(states[:len(wantStates)], wantStates) {
		t.Fatalf("expected turn to go through %v, got %v", wantStates, states)
	}
}

func TestPartialTranscriptPrecedesFinal(t *testing.T) {
	var mu sync.Mutex
	var kinds []events.Kind
	o, _ := newTestOrchestrator([]string{"goodbye"}, newAssistantStub(), newSpeakerStub(),
		WithEventHandler(func(event events.Event) {
			switch event.(type) {
			case events.UserTranscriptPartial, events.UserTranscriptFinal:
				mu.Lock()
				kinds = append(kinds, event.Kind())
				mu.Unlock()
			}
		}),
	)

	if err := runWithTimeout(o, 2*time.Second); err != nil {
		t.Fatalf("expected Run to end cleanly, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []events.Kind{events.KindUserTranscriptPartial, events.KindUserTranscriptFinal}
	if !slices.Equal(kinds, want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
}

func TestBridgeErrorIsFollowedByApology(t *testing.T) {
	assistant := newAssistantStub(messages.ErrorLine(errors.New("failed to start assistant: not found")))
	speaker := newSpeakerStub()
	o, _ := newTestOrchestrator([]string{"run the tests", "bye"}, assistant, speaker)

	if err := runWithTimeout(o, 2*time.Second); err != nil {
		t.Fatalf("expected Run to end cleanly, got %v", err)
	}

	want := []string{
		"Error: failed to start assistant: not found",
		DefaultConfig().Apology,
		"Goodbye!",
	}
	if got := speaker.texts(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAssistantErrorLineIsSpokenWithoutApology(t *testing.T) {
	assistant := newAssistantStub(messages.Raw{"type": "error", "error": "rate limited"})
	speaker := newSpeakerStub()
	o, _ := newTestOrchestrator([]string{"run the tests", "bye"}, assistant, speaker)

	if err := runWithTimeout(o, 2*time.Second); err != nil {
		t.Fatalf("expected Run to end cleanly, got %v", err)
	}
	want := []string{"Error: rate limited", "Goodbye!"}
	if got := speaker.texts(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestBargeInInterruptsPlayback(t *testing.T) {
	assistant := newAssistantStub(assistantLine("First part."), assistantLine("Second part."))
	assistant.hold = true
	speaker := newSpeakerStub("First part.")

	interrupted := make(chan struct{}, 1)
	o, capture := newTestOrchestrator([]string{"explain the code"}, assistant, speaker,
		WithInterruptionCallback(func() { interrupted <- struct{}{} }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	select {
	case text := <-speaker.started:
		if text != "First part." {
			t.Fatalf("expected first fragment to play first, got %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback")
	}
	capture.frames <- loudFrame()

	select {
	case <-interrupted:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for barge-in")
	}

	waitForCaptures(t, capture, 2)

	if got := speaker.texts(); !slices.Equal(got, []string{"First part."}) {
		t.Fatalf("expected queued fragments to be dropped after barge-in, got %v", got)
	}
	if assistant.cancelCount() < 1 {
		t.Fatalf("expected barge-in to cancel the assistant")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected Run to end cleanly on cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}

func TestQuietInputDoesNotBargeIn(t *testing.T) {
	assistant := newAssistantStub(assistantLine("One."), assistantLine("Two."))
	speaker := newSpeakerStub()
	o, capture := newTestOrchestrator([]string{"count", "bye"}, assistant, speaker)
	for range 5 {
		capture.frames <- make([]byte, 3200)
	}

	if err := runWithTimeout(o, 2*time.Second); err != nil {
		t.Fatalf("expected Run to end cleanly, got %v", err)
	}
	want := []string{"One.", "Two.", "Goodbye!"}
	if got := speaker.texts(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestInterruptStopsCurrentFragment(t *testing.T) {
	assistant := newAssistantStub(assistantLine("Long answer."), assistantLine("More."))
	assistant.hold = true
	speaker := newSpeakerStub("Long answer.")

	var mu sync.Mutex
	var completed []events.TurnCompleted
	o, _ := newTestOrchestrator([]string{"explain"}, assistant, speaker,
		WithEventHandler(func(event events.Event) {
			if event, ok := event.(events.TurnCompleted); ok {
				mu.Lock()
				completed = append(completed, event)
				mu.Unlock()
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	select {
	case <-speaker.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback")
	}
	o.Interrupt()
	o.Interrupt()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(completed)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for the turn to complete")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	if !completed[0].Interrupted || completed[0].Spoken != 1 {
		t.Fatalf("expected an interrupted turn with one fragment played, got %+v", completed[0])
	}
	mu.Unlock()
	if got := speaker.texts(); !slices.Equal(got, []string{"Long answer."}) {
		t.Fatalf("expected nothing after the interrupt, got %v", got)
	}

	o.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected Run to end cleanly on Stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after Stop")
	}
}

func TestCaptureFailureKeepsListening(t *testing.T) {
	assistant := newAssistantStub()
	speaker := newSpeakerStub()
	o, capture := newTestOrchestrator([]string{"goodbye"}, assistant, speaker,
		WithConfig(Config{CaptureRetryDelay: time.Millisecond}),
	)
	capture.errs <- errors.New("device unplugged")

	if err := runWithTimeout(o, 2*time.Second); err != nil {
		t.Fatalf("expected Run to recover from a capture failure, got %v", err)
	}
	if got := speaker.texts(); !slices.Equal(got, []string{"Goodbye!"}) {
		t.Fatalf("expected the loop to continue to the quit phrase, got %v", got)
	}
}

func TestStopEndsRun(t *testing.T) {
	o, capture := newTestOrchestrator(nil, newAssistantStub(), newSpeakerStub())

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	waitForCaptures(t, capture, 1)
	if state := o.State(); state != StateIdle {
		t.Fatalf("expected Idle while waiting for speech, got %s", state)
	}
	o.Stop()
	o.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil from a stopped Run, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after Stop")
	}
}

func TestRunRequiresComponents(t *testing.T) {
	if err := NewOrchestrator().Run(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	o, capture := newTestOrchestrator(nil, newAssistantStub(), newSpeakerStub())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	waitForCaptures(t, capture, 1)
	if state := o.State(); state != StateIdle {
		t.Fatalf("expected Idle while waiting for speech, got %s", state)
	}
	if err := o.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	cancel()
	<-done
}
