package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrUnsupportedEncoding = errors.New("unsupported capture encoding")
	ErrStreamEnded         = errors.New("audio input stream ended")
)

// Input is a live audio source delivering linear16 chunks through a callback.
type Input interface {
	EncodingInfo() EncodingInfo
	Stream(ctx context.Context, onAudio func(audio []byte)) error
}

type CaptureConfig struct {
	SegmenterConfig
	// FrameDuration is the length of the fixed frames the segmenter sees.
	FrameDuration time.Duration
	// FrameBuffer is how many frames are kept while nobody is reading.
	FrameBuffer int
}

func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SegmenterConfig: DefaultSegmenterConfig(),
		FrameDuration:   DefaultFrameDuration,
		FrameBuffer:     50,
	}
}

// Capturer re-blocks device chunks into fixed size frames and segments them
// into utterances. Frames are kept in a bounded buffer that drops the oldest
// frame when nobody keeps up.
type Capturer struct {
	input        Input
	config       CaptureConfig
	encodingInfo EncodingInfo
	frameSize    int

	frames chan []byte
	errs   chan error

	pendingMu sync.Mutex
	pending   []byte

	streamMu  sync.Mutex
	streamCtx context.Context
	streaming bool
	streams   sync.WaitGroup
}

func NewCapturer(input Input, config CaptureConfig) (*Capturer, error) {
	encodingInfo := input.EncodingInfo()
	if encodingInfo.IsZero() {
		encodingInfo = GetDefaultEncodingInfo()
	}
	if encodingInfo.Format != EncodingLinear16 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encodingInfo.Format.Name())
	}
	if config.FrameDuration <= 0 {
		config.FrameDuration = DefaultFrameDuration
	}
	if config.FrameBuffer <= 0 {
		config.FrameBuffer = DefaultCaptureConfig().FrameBuffer
	}

	frameSize := encodingInfo.BytesFor(config.FrameDuration)
	if frameSize == 0 {
		return nil, fmt.Errorf("frame duration %s is too short", config.FrameDuration)
	}

	return &Capturer{
		input:        input,
		config:       config,
		encodingInfo: encodingInfo,
		frameSize:    frameSize,
		frames:       make(chan []byte, config.FrameBuffer),
		errs:         make(chan error, 1),
	}, nil
}

// Start begins streaming from the input until ctx is done. A stream that
// failed is reopened by the next Start or Capture.
func (c *Capturer) Start(ctx context.Context) {
	c.streamMu.Lock()
	c.streamCtx = ctx
	c.streamMu.Unlock()
	c.ensureStreaming(ctx)
}

// ensureStreaming opens the input stream unless it is already open. The
// context given to Start outlives fallback, which is only used without one.
func (c *Capturer) ensureStreaming(fallback context.Context) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.streaming {
		return
	}
	ctx := c.streamCtx
	if ctx == nil {
		ctx = fallback
	}
	if ctx.Err() != nil {
		return
	}

	c.streaming = true
	c.streams.Add(1)
	go func() {
		defer c.streams.Done()
		err := c.input.Stream(ctx, c.push)

		c.streamMu.Lock()
		c.streaming = false
		c.streamMu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrStreamEnded
		}
		c.reportError(fmt.Errorf("audio input stream failed: %w", err))
	}()
}

// Wait blocks until the input stream has returned. The input must not be
// closed before that.
func (c *Capturer) Wait() {
	c.streams.Wait()
}

func (c *Capturer) EncodingInfo() EncodingInfo { return c.encodingInfo }
func (c *Capturer) Frames() <-chan []byte      { return c.frames }

// Flush drops every buffered frame and any partial frame.
func (c *Capturer) Flush() {
	c.pendingMu.Lock()
	c.pending = c.pending[:0]
	c.pendingMu.Unlock()

	for {
		select {
		case <-c.frames:
		default:
			return
		}
	}
}

// Capture blocks until one utterance has been segmented from live audio,
// reopening the input stream if it is not running. It returns ctx.Err() on
// shutdown and the device error when the input fails.
// onSpeechStarted, when set, is called the first time speech is detected.
func (c *Capturer) Capture(ctx context.Context, onSpeechStarted func()) (*Utterance, error) {
	ctx, span := tracer.Start(ctx, "capture utterance")
	defer span.End()

	c.ensureStreaming(ctx)
	c.Flush()
	segmenter := NewSegmenter(c.config.SegmenterConfig)
	notified := false
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err := <-c.errs:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err

		case frame := <-c.frames:
			pcm, done := segmenter.Push(frame, c.config.FrameDuration)
			if segmenter.Speaking() && !notified {
				notified = true
				if onSpeechStarted != nil {
					onSpeechStarted()
				}
			}
			if done {
				utterance := NewUtterance(pcm, c.encodingInfo)
				span.SetAttributes(attribute.Float64("utterance.duration_seconds", utterance.Duration().Seconds()))
				return utterance, nil
			}
		}
	}
}

func (c *Capturer) push(chunk []byte) {
	c.pendingMu.Lock()
	c.pending = append(c.pending, chunk...)
	var ready [][]byte
	for len(c.pending) >= c.frameSize {
		frame := make([]byte, c.frameSize)
		copy(frame, c.pending[:c.frameSize])
		ready = append(ready, frame)
		c.pending = c.pending[c.frameSize:]
	}
	// keep the backing array from growing without bound
	c.pending = append([]byte(nil), c.pending...)
	c.pendingMu.Unlock()

	for _, frame := range ready {
		c.deliver(frame)
	}
}

func (c *Capturer) deliver(frame []byte) {
	select {
	case c.frames <- frame:
		return
	default:
	}

	// drop the oldest frame to make room
	select {
	case <-c.frames:
	default:
	}
	select {
	case c.frames <- frame:
	default:
		logger.Debug("dropped capture frame", "frame_bytes", len(frame))
	}
}

func (c *Capturer) reportError(err error) {
	select {
	case c.errs <- err:
	default:
		logger.Warn("audio input error dropped", "error", err)
	}
}
