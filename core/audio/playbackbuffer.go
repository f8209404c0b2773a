package audio

import "sync"

// PlaybackBuffer queues outgoing audio for a device callback and tracks named
// marks placed between chunks. A mark fires once every byte queued before it
// has been read, or when the buffer is cleared.
type PlaybackBuffer struct {
	mu       sync.Mutex
	audio    []byte
	consumed int
	queued   int
	marks    []playbackMark
}

type playbackMark struct {
	name     string
	position int
	callback func(string)
}

func (b *PlaybackBuffer) Write(audio []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = append(b.audio, audio...)
	b.queued += len(audio)
}

// Mark registers callback to run once playback reaches the current end of
// the buffer. Callbacks run on their own goroutine in mark order.
func (b *PlaybackBuffer) Mark(name string, callback func(string)) {
	b.mu.Lock()
	if len(b.audio) == 0 {
		b.mu.Unlock()
		go callback(name)
		return
	}
	b.marks = append(b.marks, playbackMark{name: name, position: b.queued, callback: callback})
	b.mu.Unlock()
}

// Read fills out with queued audio, padding with silence, and returns how
// many bytes of real audio were copied.
func (b *PlaybackBuffer) Read(out []byte) int {
	b.mu.Lock()
	n := copy(out, b.audio)
	clear(out[n:])
	b.audio = b.audio[n:]
	if len(b.audio) == 0 {
		b.audio = nil
	}
	b.consumed += n

	passed := 0
	for passed < len(b.marks) && b.marks[passed].position <= b.consumed {
		passed++
	}
	fired := b.marks[:passed:passed]
	b.marks = b.marks[passed:]
	b.mu.Unlock()

	fire(fired)
	return n
}

// Clear drops queued audio and releases every pending mark.
func (b *PlaybackBuffer) Clear() {
	b.mu.Lock()
	b.audio = nil
	b.consumed = b.queued
	fired := b.marks
	b.marks = nil
	b.mu.Unlock()

	fire(fired)
}

// Len returns the number of queued bytes not yet read.
func (b *PlaybackBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.audio)
}

func fire(marks []playbackMark) {
	if len(marks) == 0 {
		return
	}
	go func() {
		for _, mark := range marks {
			mark.callback(mark.name)
		}
	}()
}
