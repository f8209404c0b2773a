// Command ema-voicecode lets you drive the claude coding assistant by voice.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	orchestration "github.com/koscakluka/ema-voicecode/core"
	"github.com/koscakluka/ema-voicecode/core/assistant"
	"github.com/koscakluka/ema-voicecode/core/audio"
	"github.com/koscakluka/ema-voicecode/core/audio/miniaudio"
	"github.com/koscakluka/ema-voicecode/core/audio/portaudio"
	stt "github.com/koscakluka/ema-voicecode/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-voicecode/core/texttospeech"
	"github.com/koscakluka/ema-voicecode/core/texttospeech/command"
	tts "github.com/koscakluka/ema-voicecode/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-voicecode/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ema-voicecode:", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := setupTelemetry(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, shutdownTelemetry(context.Background()))
	}()

	device, err := openAudioDevice(cfg)
	if err != nil {
		return err
	}
	defer device.Close()

	capturer, err := audio.NewCapturer(device, cfg.CaptureConfig())
	if err != nil {
		return err
	}
	defer capturer.Wait()

	transcriber, err := stt.NewTranscriptionClient(stt.WithAPIKey(cfg.DeepgramAPIKey))
	if err != nil {
		return fmt.Errorf("failed to create transcription client: %w", err)
	}

	synthesizer, err := newSynthesizer(cfg, device.EncodingInfo().SampleRate)
	if err != nil {
		return err
	}

	assistantConfig, err := cfg.AssistantConfig()
	if err != nil {
		return err
	}
	bridge := assistant.New(assistantConfig)

	speechConfig, err := cfg.SpeechConfig()
	if err != nil {
		return err
	}

	opts := []orchestration.OrchestratorOption{
		orchestration.WithConfig(cfg.OrchestratorConfig()),
		orchestration.WithAudioCapture(capturer),
		orchestration.WithSpeechToText(transcriber),
		orchestration.WithAssistant(bridge),
		orchestration.WithSynthesizer(synthesizer),
		orchestration.WithAudioOutput(device),
		orchestration.WithSpeechConfig(speechConfig),
	}

	session := bridge.Session()
	logger.Info("starting voice loop",
		"session_id", session.ID,
		"model", session.Model,
		"backend", cfg.Audio.Backend,
	)
	if cfg.Plain {
		return runPlain(ctx, session, opts)
	}
	return runTUI(ctx, session, opts)
}

type audioDevice interface {
	audio.Input
	orchestration.AudioOutput
	Close()
}

func openAudioDevice(cfg config.Config) (audioDevice, error) {
	switch cfg.Audio.Backend {
	case config.BackendPortaudio:
		client, err := portaudio.NewClient(portaudio.WithSampleRate(cfg.Audio.SampleRate))
		if err != nil {
			return nil, fmt.Errorf("failed to open portaudio device: %w", err)
		}
		return client, nil
	default:
		client, err := miniaudio.NewClient(miniaudio.WithSampleRate(cfg.Audio.SampleRate))
		if err != nil {
			return nil, fmt.Errorf("failed to open miniaudio device: %w", err)
		}
		return client, nil
	}
}

// newSynthesizer picks the synthesis engine once at startup.
func newSynthesizer(cfg config.Config, outputRate int) (texttospeech.Synthesizer, error) {
	engine, err := texttospeech.ParseEngine(cfg.TTS.Engine)
	if err != nil {
		return nil, err
	}
	engine, err = texttospeech.ResolveEngine(engine, cfg.DeepgramAPIKey != "", command.Available(cfg.TTS.Command))
	if err != nil {
		return nil, fmt.Errorf("failed to select speech engine: %w", err)
	}

	switch engine {
	case texttospeech.EngineDeepgram:
		opts := []tts.ClientOption{tts.WithAPIKey(cfg.DeepgramAPIKey), tts.WithSampleRate(outputRate)}
		if cfg.TTS.DeepgramVoice != "" {
			opts = append(opts, tts.WithVoice(tts.Voice(cfg.TTS.DeepgramVoice)))
		}
		client, err := tts.NewTextToSpeechClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create speech client: %w", err)
		}
		logger.Info("using hosted speech synthesis", "voice", string(client.Voice()))
		return client, nil
	default:
		synthesizer, err := command.NewSynthesizer(cfg.CommandConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create speech command: %w", err)
		}
		logger.Info("using local speech synthesis", "command", cfg.TTS.Command)
		return synthesizer, nil
	}
}
