package command

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/koscakluka/ema-voicecode/core/audio"
	"github.com/koscakluka/ema-voicecode/core/texttospeech"
)

// TestHelperProcess stands in for the synthesis program. It receives the
// output file and the text after "--", with the text optionally behind a
// second "--".
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 3 {
		os.Exit(2)
	}
	file, rest := args[1], args[2:]
	if len(rest) > 1 && rest[0] == "--" {
		rest = rest[1:]
	}
	text := rest[0]
	os.WriteFile(filepath.Join(os.Getenv("SPOOL_RECORD_DIR"), "text"), []byte(text), 0o600)

	switch text {
	case "fail":
		os.Stderr.WriteString("voice not found\n")
		os.Exit(1)
	case "nothing":
		return
	}

	samples := make([]int16, 11025)
	for i := range samples {
		samples[i] = int16(i%100) * 100
	}
	out, err := os.Create(file)
	if err != nil {
		os.Exit(3)
	}
	format := beep.Format{SampleRate: 22050, NumChannels: 1, Precision: 2}
	if err := wav.Encode(out, audio.NewPCMStreamer(audio.SamplesToBytes(samples)), format); err != nil {
		os.Exit(3)
	}
	out.Close()
	os.WriteFile(filepath.Join(os.Getenv("SPOOL_RECORD_DIR"), "spool"), []byte(file), 0o600)
}

func newHelperSynthesizer(t *testing.T, sampleRate int) (*Synthesizer, string) {
	t.Helper()
	return newHelperSynthesizerWithArgs(t, sampleRate, "-test.run=TestHelperProcess", "--", FilePlaceholder, TextPlaceholder)
}

func newHelperSynthesizerWithArgs(t *testing.T, sampleRate int, args ...string) (*Synthesizer, string) {
	t.Helper()
	recordDir := t.TempDir()
	synthesizer, err := NewSynthesizer(Config{
		Command:    os.Args[0],
		Args:       args,
		Env:        []string{"GO_WANT_HELPER_PROCESS=1", "SPOOL_RECORD_DIR=" + recordDir},
		SampleRate: sampleRate,
	})
	if err != nil {
		t.Fatalf("expected synthesizer to be created, got %v", err)
	}
	return synthesizer, recordDir
}

func TestSynthesizeDecodesWAV(t *testing.T) {
	synthesizer, recordDir := newHelperSynthesizer(t, 22050)

	var pcm []byte
	chunks := 0
	err := synthesizer.Synthesize(context.Background(), "Reading main.go", func(chunk []byte) error {
		chunks++
		pcm = append(pcm, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("expected synthesis to succeed, got %v", err)
	}

	if len(pcm) != 22050 {
		t.Fatalf("expected half a second of audio, got %d bytes", len(pcm))
	}
	if chunks != 5 {
		t.Fatalf("expected 100ms chunks, got %d", chunks)
	}
	if sample := audio.BytesToSamples(pcm)[42]; sample < 4199 || sample > 4201 {
		t.Fatalf("expected samples to survive decoding, got %d", sample)
	}

	spool, err := os.ReadFile(filepath.Join(recordDir, "spool"))
	if err != nil {
		t.Fatalf("expected helper to record its output path, got %v", err)
	}
	if _, err := os.Stat(string(spool)); !os.IsNotExist(err) {
		t.Fatalf("expected spool file %s to be removed, got %v", spool, err)
	}
}

func TestSynthesizeResamplesToConfiguredRate(t *testing.T) {
	synthesizer, _ := newHelperSynthesizer(t, 16000)

	total := 0
	err := synthesizer.Synthesize(context.Background(), "hello", func(chunk []byte) error {
		total += len(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("expected synthesis to succeed, got %v", err)
	}
	if total != 16000 {
		t.Fatalf("expected about half a second at 16kHz, got %d bytes", total)
	}
	if info := synthesizer.EncodingInfo(); info.SampleRate != 16000 {
		t.Fatalf("expected 16kHz encoding info, got %d", info.SampleRate)
	}
}

func TestSynthesizeReportsFailures(t *testing.T) {
	synthesizer, _ := newHelperSynthesizer(t, 22050)

	err := synthesizer.Synthesize(context.Background(), "fail", func([]byte) error { return nil })
	if err == nil {
		t.Fatalf("expected failing command to return an error")
	}

	err = synthesizer.Synthesize(context.Background(), "nothing", func([]byte) error { return nil })
	if err == nil {
		t.Fatalf("expected missing output file to return an error")
	}
}

func TestSynthesizeSkipsBlankText(t *testing.T) {
	synthesizer, _ := newHelperSynthesizer(t, 22050)

	err := synthesizer.Synthesize(context.Background(), "   ", func([]byte) error {
		t.Fatalf("expected no audio for blank text")
		return nil
	})
	if err != nil {
		t.Fatalf("expected blank text to be a no-op, got %v", err)
	}
}

func TestSynthesizeStopsOnCallbackError(t *testing.T) {
	synthesizer, _ := newHelperSynthesizer(t, 22050)

	stop := errors.New("interrupted")
	calls := 0
	err := synthesizer.Synthesize(context.Background(), "hello", func([]byte) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected first callback error to stop synthesis, got %v after %d calls", err, calls)
	}
}

func TestArgs(t *testing.T) {
	synthesizer := &Synthesizer{config: Config{
		Args:  []string{"-w", FilePlaceholder},
		Voice: "en-gb",
		Rate:  180,
	}}

	tests := []struct {
		text string
		want []string
	}{
		{"hello there", []string{"-v", "en-gb", "-s", "180", "-w", "/tmp/out.wav", "--", "hello there"}},
		{"- added x - removed y", []string{"-v", "en-gb", "-s", "180", "-w", "/tmp/out.wav", "--", "- added x - removed y"}},
		{"-5 degrees", []string{"-v", "en-gb", "-s", "180", "-w", "/tmp/out.wav", "--", "-5 degrees"}},
	}
	for _, tt := range tests {
		if got := synthesizer.args("/tmp/out.wav", tt.text); !slices.Equal(got, tt.want) {
			t.Fatalf("expected %v, got %v", tt.want, got)
		}
	}
}

func TestArgsKeepTextPlaceholder(t *testing.T) {
	synthesizer := &Synthesizer{config: Config{Args: []string{"--stdout-file={file}", "--say", TextPlaceholder}}}

	got := synthesizer.args("/tmp/out.wav", "-1 failing test")
	want := []string{"--stdout-file=/tmp/out.wav", "--say", "-1 failing test"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSynthesizeSpeaksLeadingDash(t *testing.T) {
	synthesizer, recordDir := newHelperSynthesizerWithArgs(t, 22050, "-test.run=TestHelperProcess", "--", FilePlaceholder)

	total := 0
	err := synthesizer.Synthesize(context.Background(), "- first item - second item", func(chunk []byte) error {
		total += len(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("expected text with a leading dash to be spoken, got %v", err)
	}
	if total != 22050 {
		t.Fatalf("expected half a second of audio, got %d bytes", total)
	}
	text, err := os.ReadFile(filepath.Join(recordDir, "text"))
	if err != nil || string(text) != "- first item - second item" {
		t.Fatalf("expected the program to receive the text verbatim, got %q (%v)", text, err)
	}
}

func TestNewSynthesizerValidates(t *testing.T) {
	if _, err := NewSynthesizer(Config{Command: "definitely-not-a-tts-program"}); !errors.Is(err, texttospeech.ErrNoEngine) {
		t.Fatalf("expected ErrNoEngine, got %v", err)
	}
	if _, err := NewSynthesizer(Config{Command: os.Args[0], Args: []string{TextPlaceholder}}); err == nil {
		t.Fatalf("expected arguments without a file placeholder to be rejected")
	}
}
