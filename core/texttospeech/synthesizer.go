// Package texttospeech defines the speech synthesis capability and how an
// engine is chosen for it.
package texttospeech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-voicecode/core/audio"
)

var (
	ErrNoAPIKey      = errors.New("speech synthesis api key not found")
	ErrNoEngine      = errors.New("no speech synthesis engine available")
	ErrUnknownEngine = errors.New("unknown speech synthesis engine")
)

// Synthesizer turns text into mono linear16 audio in EncodingInfo's format.
type Synthesizer interface {
	// Synthesize delivers audio to onAudio in order as it becomes available
	// and returns once all of it was delivered. An error from onAudio stops
	// synthesis and is returned.
	Synthesize(ctx context.Context, text string, onAudio func(audio []byte) error) error
	EncodingInfo() audio.EncodingInfo
}

type Engine string

const (
	EngineAuto     Engine = "auto"
	EngineDeepgram Engine = "deepgram"
	EngineCommand  Engine = "command"
)

func ParseEngine(name string) (Engine, error) {
	switch engine := Engine(strings.ToLower(strings.TrimSpace(name))); engine {
	case "":
		return EngineAuto, nil
	case EngineAuto, EngineDeepgram, EngineCommand:
		return engine, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// ResolveEngine picks the concrete engine to use once at startup. Auto
// prefers the hosted engine when it has credentials and falls back to the
// local command.
func ResolveEngine(engine Engine, hasAPIKey bool, commandAvailable bool) (Engine, error) {
	switch engine {
	case EngineDeepgram:
		if !hasAPIKey {
			return "", ErrNoAPIKey
		}
		return EngineDeepgram, nil
	case EngineCommand:
		if !commandAvailable {
			return "", fmt.Errorf("%w: synthesis command not found", ErrNoEngine)
		}
		return EngineCommand, nil
	case EngineAuto, "":
		switch {
		case hasAPIKey:
			return EngineDeepgram, nil
		case commandAvailable:
			return EngineCommand, nil
		default:
			return "", ErrNoEngine
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

// Chunk splits pcm into whole-sample pieces of at most size bytes and hands
// them to onAudio in order.
func Chunk(pcm []byte, size int, onAudio func([]byte) error) error {
	if size <= 0 {
		size = len(pcm)
	}
	size -= size % 2
	if size == 0 {
		size = 2
	}
	for start := 0; start < len(pcm); start += size {
		if err := onAudio(pcm[start:min(start+size, len(pcm))]); err != nil {
			return err
		}
	}
	return nil
}
