package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/ema-voicecode/core/audio"
)

var configKeys = []string{
	"VOICECODE_AUDIO_BACKEND", "VOICECODE_SAMPLE_RATE", "VOICECODE_VAD_THRESHOLD",
	"VOICECODE_SILENCE_DURATION", "VOICECODE_MIN_SPEECH_DURATION", "VOICECODE_BARGE_IN_MULTIPLIER",
	"CLAUDE_PATH", "CLAUDE_MODEL", "VOICECODE_WORKDIR", "VOICECODE_SKIP_PERMISSIONS",
	"VOICECODE_ANNOUNCE_TOOLS", "VOICECODE_SUMMARIZE_RESULTS", "VOICECODE_MAX_RESULT_WORDS",
	"VOICECODE_SKIP_CODE_BLOCKS", "VOICECODE_MAX_FILE_LIST", "TTS_ENGINE", "DEEPGRAM_TTS_VOICE",
	"TTS_COMMAND", "TTS_COMMAND_VOICE", "TTS_COMMAND_RATE", "DEEPGRAM_API_KEY",
	"VOICECODE_LOG_FILE", "VOICECODE_PLAIN",
}

// clearEnv unsets every configuration variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	config, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("expected defaults to load, got %v", err)
	}

	if config.Audio.Backend != BackendMiniaudio || config.Audio.SampleRate != audio.DefaultSampleRate {
		t.Fatalf("unexpected audio defaults %+v", config.Audio)
	}
	if config.Audio.VADThreshold != audio.DefaultVADThreshold || config.Audio.BargeInMultiplier != 3 {
		t.Fatalf("unexpected detection defaults %+v", config.Audio)
	}
	if config.Assistant.Path != "claude" || config.Assistant.Model != "sonnet" || !config.Assistant.SkipPermissions {
		t.Fatalf("unexpected assistant defaults %+v", config.Assistant)
	}
	if !config.Speech.AnnounceToolUse || config.Speech.MaxFileList != 5 || config.Speech.MaxResultWords != 100 {
		t.Fatalf("unexpected speech defaults %+v", config.Speech)
	}
	if config.TTS.Engine != "auto" || config.TTS.Command != "espeak-ng" {
		t.Fatalf("unexpected synthesis defaults %+v", config.TTS)
	}

	if err := config.Validate(); !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), "DEEPGRAM_API_KEY") {
		t.Fatalf("expected a missing API key to fail validation, got %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	workdir := t.TempDir()
	t.Setenv("VOICECODE_AUDIO_BACKEND", "portaudio")
	t.Setenv("VOICECODE_SILENCE_DURATION", "1.5s")
	t.Setenv("VOICECODE_BARGE_IN_MULTIPLIER", "4")
	t.Setenv("CLAUDE_MODEL", "opus")
	t.Setenv("VOICECODE_WORKDIR", workdir)
	t.Setenv("VOICECODE_SKIP_PERMISSIONS", "false")
	t.Setenv("VOICECODE_MAX_FILE_LIST", "3")
	t.Setenv("TTS_ENGINE", "command")
	t.Setenv("DEEPGRAM_API_KEY", "key")

	config, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("expected config to be valid, got %v", err)
	}

	if config.Audio.Backend != BackendPortaudio || config.Audio.SilenceDuration != 1500*time.Millisecond {
		t.Fatalf("unexpected audio config %+v", config.Audio)
	}

	assistantConfig, err := config.AssistantConfig()
	if err != nil {
		t.Fatalf("expected assistant config, got %v", err)
	}
	if assistantConfig.Model != "opus" || assistantConfig.WorkingDirectory != workdir || assistantConfig.SkipPermissions {
		t.Fatalf("unexpected assistant config %+v", assistantConfig)
	}
	if assistantConfig.MaxLineSize == 0 || assistantConfig.ExitTimeout == 0 {
		t.Fatalf("expected assistant defaults to be kept, got %+v", assistantConfig)
	}

	speechConfig, err := config.SpeechConfig()
	if err != nil {
		t.Fatalf("expected speech config, got %v", err)
	}
	if speechConfig.MaxFileList != 3 || !speechConfig.SummarizeToolResult {
		t.Fatalf("unexpected speech config %+v", speechConfig)
	}

	if orchestratorConfig := config.OrchestratorConfig(); orchestratorConfig.BargeInMultiplier != 4 {
		t.Fatalf("unexpected orchestrator config %+v", orchestratorConfig)
	}
	if captureConfig := config.CaptureConfig(); captureConfig.SilenceDuration != 1500*time.Millisecond {
		t.Fatalf("unexpected capture config %+v", captureConfig)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLAUDE_MODEL", "haiku")

	file := filepath.Join(t.TempDir(), ".env")
	content := "DEEPGRAM_API_KEY=from-file\nCLAUDE_MODEL=opus\nTTS_COMMAND_RATE=170\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("DEEPGRAM_API_KEY")
		os.Unsetenv("TTS_COMMAND_RATE")
	})

	config, err := Load(file)
	if err != nil {
		t.Fatalf("expected env file to load, got %v", err)
	}
	if config.DeepgramAPIKey != "from-file" || config.TTS.CommandRate != 170 {
		t.Fatalf("expected values from the env file, got %+v", config)
	}
	if config.Assistant.Model != "haiku" {
		t.Fatalf("expected the environment to win over the env file, got %q", config.Assistant.Model)
	}
}

func TestLoadReportsParseErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOICECODE_SAMPLE_RATE", "fast")
	t.Setenv("VOICECODE_PLAIN", "maybe")

	_, err := Load(missingEnvFile(t))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "VOICECODE_SAMPLE_RATE") || !strings.Contains(err.Error(), "VOICECODE_PLAIN") {
		t.Fatalf("expected both bad variables to be reported, got %v", err)
	}
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "key")
	config, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}

	testCases := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"backend", func(c *Config) { c.Audio.Backend = "alsa" }, "VOICECODE_AUDIO_BACKEND"},
		{"threshold", func(c *Config) { c.Audio.VADThreshold = 1.5 }, "VOICECODE_VAD_THRESHOLD"},
		{"multiplier", func(c *Config) { c.Audio.BargeInMultiplier = 0.5 }, "VOICECODE_BARGE_IN_MULTIPLIER"},
		{"engine", func(c *Config) { c.TTS.Engine = "festival" }, "TTS_ENGINE"},
		{"workdir", func(c *Config) { c.Assistant.WorkingDirectory = filepath.Join(t.TempDir(), "nope") }, "VOICECODE_WORKDIR"},
		{"file list", func(c *Config) { c.Speech.MaxFileList = 0 }, "VOICECODE_MAX_FILE_LIST"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			modified := config
			testCase.mutate(&modified)
			err := modified.Validate()
			if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), testCase.key) {
				t.Fatalf("expected %s to be rejected, got %v", testCase.key, err)
			}
		})
	}
}
