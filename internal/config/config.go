// Package config loads the binary's configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/joho/godotenv"
	orchestration "github.com/koscakluka/ema-voicecode/core"
	"github.com/koscakluka/ema-voicecode/core/assistant"
	"github.com/koscakluka/ema-voicecode/core/audio"
	"github.com/koscakluka/ema-voicecode/core/speech"
	"github.com/koscakluka/ema-voicecode/core/texttospeech"
	"github.com/koscakluka/ema-voicecode/core/texttospeech/command"
)

var ErrInvalid = errors.New("invalid configuration")

const (
	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"
)

type Config struct {
	Audio     AudioConfig
	Assistant AssistantConfig
	Speech    SpeechConfig
	TTS       TTSConfig

	DeepgramAPIKey string
	// LogFile receives the log output. Empty logs to stderr in plain mode and
	// to ema-voicecode.log otherwise.
	LogFile string
	// Plain disables the terminal UI.
	Plain bool
}

type AudioConfig struct {
	Backend           string
	SampleRate        int
	VADThreshold      float64
	SilenceDuration   time.Duration
	MinSpeechDuration time.Duration
	BargeInMultiplier float64
}

// AssistantConfig mirrors the fields of assistant.Config that can be set
// from the environment.
type AssistantConfig struct {
	Path             string
	Model            string
	WorkingDirectory string
	SkipPermissions  bool
}

type SpeechConfig struct {
	AnnounceToolUse     bool
	SummarizeToolResult bool
	MaxResultWords      int
	SkipCodeBlocks      bool
	MaxFileList         int
}

type TTSConfig struct {
	Engine        string
	DeepgramVoice string
	Command       string
	CommandVoice  string
	CommandRate   int
}

// Load reads files (".env" when none are given) into the environment without
// overriding variables that are already set, then builds the configuration.
// A missing .env file is not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}

	env := envReader{}
	speechDefaults := speech.DefaultConfig()
	assistantDefaults := assistant.DefaultConfig()
	config := Config{
		Audio: AudioConfig{
			Backend:           env.lookupString("VOICECODE_AUDIO_BACKEND", BackendMiniaudio),
			SampleRate:        env.lookupInt("VOICECODE_SAMPLE_RATE", audio.DefaultSampleRate),
			VADThreshold:      env.lookupFloat("VOICECODE_VAD_THRESHOLD", audio.DefaultVADThreshold),
			SilenceDuration:   env.lookupDuration("VOICECODE_SILENCE_DURATION", audio.DefaultSilenceDuration),
			MinSpeechDuration: env.lookupDuration("VOICECODE_MIN_SPEECH_DURATION", audio.DefaultMinSpeechDuration),
			BargeInMultiplier: env.lookupFloat("VOICECODE_BARGE_IN_MULTIPLIER", orchestration.DefaultConfig().BargeInMultiplier),
		},
		Assistant: AssistantConfig{
			Path:             env.lookupString("CLAUDE_PATH", assistantDefaults.Path),
			Model:            env.lookupString("CLAUDE_MODEL", assistantDefaults.Model),
			WorkingDirectory: env.lookupString("VOICECODE_WORKDIR", ""),
			SkipPermissions:  env.lookupBool("VOICECODE_SKIP_PERMISSIONS", assistantDefaults.SkipPermissions),
		},
		Speech: SpeechConfig{
			AnnounceToolUse:     env.lookupBool("VOICECODE_ANNOUNCE_TOOLS", speechDefaults.AnnounceToolUse),
			SummarizeToolResult: env.lookupBool("VOICECODE_SUMMARIZE_RESULTS", speechDefaults.SummarizeToolResult),
			MaxResultWords:      env.lookupInt("VOICECODE_MAX_RESULT_WORDS", speechDefaults.MaxResultWords),
			SkipCodeBlocks:      env.lookupBool("VOICECODE_SKIP_CODE_BLOCKS", speechDefaults.SkipCodeBlocks),
			MaxFileList:         env.lookupInt("VOICECODE_MAX_FILE_LIST", speechDefaults.MaxFileList),
		},
		TTS: TTSConfig{
			Engine:        env.lookupString("TTS_ENGINE", string(texttospeech.EngineAuto)),
			DeepgramVoice: env.lookupString("DEEPGRAM_TTS_VOICE", ""),
			Command:       env.lookupString("TTS_COMMAND", command.DefaultCommand),
			CommandVoice:  env.lookupString("TTS_COMMAND_VOICE", ""),
			CommandRate:   env.lookupInt("TTS_COMMAND_RATE", 0),
		},
		DeepgramAPIKey: env.lookupString("DEEPGRAM_API_KEY", ""),
		LogFile:        env.lookupString("VOICECODE_LOG_FILE", ""),
		Plain:          env.lookupBool("VOICECODE_PLAIN", false),
	}

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return config, nil
}

// Validate checks ranges and required values.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Audio.Backend {
	case BackendMiniaudio, BackendPortaudio:
	default:
		invalid("VOICECODE_AUDIO_BACKEND must be %s or %s, got %q", BackendMiniaudio, BackendPortaudio, c.Audio.Backend)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 48000 {
		invalid("VOICECODE_SAMPLE_RATE must be between 8000 and 48000, got %d", c.Audio.SampleRate)
	}
	if c.Audio.VADThreshold <= 0 || c.Audio.VADThreshold >= 1 {
		invalid("VOICECODE_VAD_THRESHOLD must be between 0 and 1, got %g", c.Audio.VADThreshold)
	}
	if c.Audio.SilenceDuration <= 0 {
		invalid("VOICECODE_SILENCE_DURATION must be positive, got %s", c.Audio.SilenceDuration)
	}
	if c.Audio.MinSpeechDuration < 0 {
		invalid("VOICECODE_MIN_SPEECH_DURATION must not be negative, got %s", c.Audio.MinSpeechDuration)
	}
	if c.Audio.BargeInMultiplier < 1 {
		invalid("VOICECODE_BARGE_IN_MULTIPLIER must be at least 1, got %g", c.Audio.BargeInMultiplier)
	}
	if strings.TrimSpace(c.Assistant.Path) == "" {
		invalid("CLAUDE_PATH must not be empty")
	}
	if strings.TrimSpace(c.Assistant.Model) == "" {
		invalid("CLAUDE_MODEL must not be empty")
	}
	if c.Assistant.WorkingDirectory != "" {
		if info, err := os.Stat(c.Assistant.WorkingDirectory); err != nil || !info.IsDir() {
			invalid("VOICECODE_WORKDIR %q is not a directory", c.Assistant.WorkingDirectory)
		}
	}
	if c.Speech.MaxResultWords <= 0 {
		invalid("VOICECODE_MAX_RESULT_WORDS must be positive, got %d", c.Speech.MaxResultWords)
	}
	if c.Speech.MaxFileList <= 0 {
		invalid("VOICECODE_MAX_FILE_LIST must be positive, got %d", c.Speech.MaxFileList)
	}
	if _, err := texttospeech.ParseEngine(c.TTS.Engine); err != nil {
		invalid("TTS_ENGINE: %w", err)
	}
	if c.TTS.CommandRate < 0 {
		invalid("TTS_COMMAND_RATE must not be negative, got %d", c.TTS.CommandRate)
	}
	if c.DeepgramAPIKey == "" {
		invalid("DEEPGRAM_API_KEY is required for transcription")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (c Config) AssistantConfig() (assistant.Config, error) {
	config := assistant.DefaultConfig()
	if err := copier.Copy(&config, &c.Assistant); err != nil {
		return assistant.Config{}, fmt.Errorf("failed to convert assistant config: %w", err)
	}
	return config, nil
}

func (c Config) SpeechConfig() (speech.Config, error) {
	var config speech.Config
	if err := copier.Copy(&config, &c.Speech); err != nil {
		return speech.Config{}, fmt.Errorf("failed to convert speech config: %w", err)
	}
	return config, nil
}

func (c Config) CaptureConfig() audio.CaptureConfig {
	config := audio.DefaultCaptureConfig()
	config.Threshold = c.Audio.VADThreshold
	config.SilenceDuration = c.Audio.SilenceDuration
	config.MinSpeechDuration = c.Audio.MinSpeechDuration
	return config
}

func (c Config) OrchestratorConfig() orchestration.Config {
	config := orchestration.DefaultConfig()
	config.VADThreshold = c.Audio.VADThreshold
	config.BargeInMultiplier = c.Audio.BargeInMultiplier
	return config
}

func (c Config) CommandConfig() command.Config {
	config := command.DefaultConfig()
	config.Command = c.TTS.Command
	config.Voice = c.TTS.CommandVoice
	config.Rate = c.TTS.CommandRate
	return config
}

// envReader collects parse failures so they are reported together.
type envReader struct {
	errs []error
}

func (r *envReader) lookupString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func (r *envReader) lookupInt(key string, fallback int) int {
	value := r.lookupString(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return parsed
}

func (r *envReader) lookupFloat(key string, fallback float64) float64 {
	value := r.lookupString(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return parsed
}

func (r *envReader) lookupBool(key string, fallback bool) bool {
	value := r.lookupString(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return parsed
}

func (r *envReader) lookupDuration(key string, fallback time.Duration) time.Duration {
	value := r.lookupString(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return parsed
}
