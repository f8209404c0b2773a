package orchestration

import (
	"context"
	"reflect"
	"sync"

	"github.com/koscakluka/ema-voicecode/core/audio"
)

// audioOutput wraps the configured output device. Without a device, audio is
// dropped and marks complete immediately.
type audioOutput struct {
	client AudioOutput
}

func newAudioOutput(client AudioOutput) *audioOutput {
	output := &audioOutput{}
	output.Set(client)
	return output
}

// Set replaces the output client. Nil and typed-nil clients are treated as
// unconfigured.
func (a *audioOutput) Set(client AudioOutput) {
	if a == nil {
		return
	}
	a.client = nil
	if isNilAudioOutput(client) {
		return
	}
	a.client = client
}

func (a *audioOutput) isConfigured() bool {
	return a != nil && a.client != nil
}

func (a *audioOutput) SendAudio(audio []byte) error {
	if !a.isConfigured() {
		return nil
	}
	return a.client.SendAudio(audio)
}

func (a *audioOutput) Mark(mark string, callback func(string)) {
	if !a.isConfigured() {
		callback(mark)
		return
	}
	if err := a.client.Mark(mark, callback); err != nil {
		logger.Warn("failed to place playback mark", "error", err, "mark", mark)
		callback(mark)
	}
}

func (a *audioOutput) Clear() {
	if a.isConfigured() {
		a.client.ClearBuffer()
	}
}

// EncodingInfo falls back to the project default without a device.
func (a *audioOutput) EncodingInfo() audio.EncodingInfo {
	if a.isConfigured() {
		if info := a.client.EncodingInfo(); !info.IsZero() {
			return info
		}
	}
	return audio.GetDefaultEncodingInfo()
}

// AwaitPlayback blocks until everything sent so far was played. When ctx ends
// first, the buffered audio is cleared.
func (a *audioOutput) AwaitPlayback(ctx context.Context, mark string) error {
	played := make(chan struct{})
	var once sync.Once
	a.Mark(mark, func(string) { once.Do(func() { close(played) }) })

	select {
	case <-played:
		return nil
	case <-ctx.Done():
		a.Clear()
		return ctx.Err()
	}
}

func isNilAudioOutput(client AudioOutput) bool {
	if client == nil {
		return true
	}

	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
