// Package command synthesizes speech with a local program that writes a WAV
// file, espeak-ng by default.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/koscakluka/ema-voicecode/core/audio"
	"github.com/koscakluka/ema-voicecode/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// FilePlaceholder is replaced with the path the program must write to.
	FilePlaceholder = "{file}"
	// TextPlaceholder is replaced with the text to speak. Without it the
	// text is passed as the last argument.
	TextPlaceholder = "{text}"

	DefaultCommand    = "espeak-ng"
	DefaultSampleRate = 22050
)

type Config struct {
	Command string
	Args    []string
	Env     []string
	Voice   string
	// Rate is the speaking rate in words per minute, zero keeps the program
	// default.
	Rate       int
	SampleRate int
}

func DefaultConfig() Config {
	return Config{
		Command:    DefaultCommand,
		Args:       []string{"-w", FilePlaceholder},
		SampleRate: DefaultSampleRate,
	}
}

// Available reports whether the synthesis program can be found on PATH.
func Available(command string) bool {
	if command == "" {
		command = DefaultCommand
	}
	_, err := exec.LookPath(command)
	return err == nil
}

type Synthesizer struct {
	path   string
	config Config
}

func NewSynthesizer(config Config) (*Synthesizer, error) {
	defaults := DefaultConfig()
	if config.Command == "" {
		config.Command = defaults.Command
	}
	if len(config.Args) == 0 {
		config.Args = defaults.Args
	}
	if config.SampleRate <= 0 {
		config.SampleRate = defaults.SampleRate
	}
	if !hasPlaceholder(config.Args, FilePlaceholder) {
		return nil, fmt.Errorf("synthesis command arguments must contain %s", FilePlaceholder)
	}

	path, err := exec.LookPath(config.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", texttospeech.ErrNoEngine, err)
	}
	return &Synthesizer{path: path, config: config}, nil
}

func (s *Synthesizer) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: s.config.SampleRate, Format: audio.EncodingLinear16}
}

// Synthesize runs the program into a temporary WAV file, converts the result
// to the configured sample rate and hands it to onAudio in 100ms chunks. The
// temporary file is removed on every path.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, onAudio func([]byte) error) (err error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	defer func() {
		if err != nil && !errors.Is(err, context.Canceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	span.SetAttributes(attribute.Int("speech.characters", len(text)))

	dir, err := os.MkdirTemp("", "ema-voicecode-tts-*")
	if err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove spool directory", "error", err, "dir", dir)
		}
	}()
	file := filepath.Join(dir, "speech.wav")

	cmd := exec.CommandContext(ctx, s.path, s.args(file, text)...)
	if len(s.config.Env) > 0 {
		cmd.Env = append(os.Environ(), s.config.Env...)
	}
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("synthesis command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("synthesis command failed: %w", err)
	}

	pcm, err := s.readSpool(file)
	if err != nil {
		return err
	}

	return texttospeech.Chunk(pcm, s.EncodingInfo().BytesFor(100*time.Millisecond), func(chunk []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return onAudio(chunk)
	})
}

// readSpool decodes the WAV the program wrote, converted to the configured
// sample rate.
func (s *Synthesizer) readSpool(file string) ([]byte, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("synthesis command wrote no audio: %w", err)
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode synthesized audio: %w", err)
	}
	defer streamer.Close()

	var source beep.Streamer = streamer
	samples := streamer.Len()
	if rate := int(format.SampleRate); rate != s.config.SampleRate {
		source = audio.Resampled(streamer, rate, s.config.SampleRate)
		samples = int(int64(samples) * int64(s.config.SampleRate) / int64(rate))
	}

	pcm, err := audio.ReadPCM(source, samples)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return pcm, nil
}

func (s *Synthesizer) args(file, text string) []string {
	var args []string
	if s.config.Voice != "" {
		args = append(args, "-v", s.config.Voice)
	}
	if s.config.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(s.config.Rate))
	}

	textPlaced := false
	for _, arg := range s.config.Args {
		if strings.Contains(arg, TextPlaceholder) {
			textPlaced = true
		}
		arg = strings.ReplaceAll(arg, FilePlaceholder, file)
		arg = strings.ReplaceAll(arg, TextPlaceholder, text)
		args = append(args, arg)
	}
	if !textPlaced {
		// text such as "- first item" must not be read as an option
		args = append(args, "--", text)
	}
	return args
}

func hasPlaceholder(args []string, placeholder string) bool {
	for _, arg := range args {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}
