package orchestration

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/koscakluka/ema-voicecode/core/audio"
	"github.com/koscakluka/ema-voicecode/core/speech"
	"github.com/koscakluka/ema-voicecode/core/texttospeech"
)

// synthSpeaker plays a fragment by synthesizing it, resampling to the output
// rate and waiting for the output to confirm playback.
type synthSpeaker struct {
	synthesizer texttospeech.Synthesizer
	output      *audioOutput
	marks       atomic.Int64
}

func newSynthSpeaker(synthesizer texttospeech.Synthesizer, output *audioOutput) *synthSpeaker {
	return &synthSpeaker{synthesizer: synthesizer, output: output}
}

func (s *synthSpeaker) Speak(ctx context.Context, fragment speech.Fragment) error {
	if s.synthesizer == nil {
		return nil
	}

	fromRate := s.synthesizer.EncodingInfo().SampleRate
	toRate := s.output.EncodingInfo().SampleRate
	err := s.synthesizer.Synthesize(ctx, fragment.Text, func(chunk []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.output.SendAudio(audio.ResampleBytes(chunk, fromRate, toRate))
	})
	if ctx.Err() != nil {
		s.output.Clear()
		return ctx.Err()
	}
	if err != nil {
		s.output.Clear()
		return err
	}

	return s.output.AwaitPlayback(ctx, fmt.Sprintf("fragment-%d", s.marks.Add(1)))
}
