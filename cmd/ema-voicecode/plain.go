package main

import (
	"context"
	"fmt"

	orchestration "github.com/koscakluka/ema-voicecode/core"
	"github.com/koscakluka/ema-voicecode/core/assistant"
	"github.com/koscakluka/ema-voicecode/core/speech"
)

// runPlain prints the conversation as lines on stdout.
func runPlain(ctx context.Context, session assistant.Session, opts []orchestration.OrchestratorOption) error {
	fmt.Printf("Session %s (%s). Say \"quit\" or \"goodbye\" to exit, \"new conversation\" to reset.\n", session.ID, session.Model)

	opts = append(opts,
		orchestration.WithStateChangedCallback(func(from, to orchestration.TurnState) {
			if to == orchestration.StateListening {
				fmt.Println("[listening]")
			}
		}),
		orchestration.WithTranscriptionCallback(func(transcript string) {
			fmt.Printf("you: %s\n", transcript)
		}),
		orchestration.WithFragmentCallback(func(fragment speech.Fragment) {
			fmt.Printf("claude: %s\n", fragment.Text)
		}),
		orchestration.WithInterruptionCallback(func() {
			fmt.Println("[interrupted]")
		}),
	)
	return orchestration.NewOrchestrator(opts...).Run(ctx)
}
