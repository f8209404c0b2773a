package portaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-voicecode/core/audio"
)

// Client uses separate blocking PortAudio streams for the microphone and the
// speaker. Playback is fed from a buffer by a writer goroutine so that
// ClearBuffer can cut speech short between device writes.
type Client struct {
	framesPerBuffer int
	sampleRate      int

	input  *portaudio.Stream
	output *portaudio.Stream
	in     []int16
	out    []int16

	buffer audio.PlaybackBuffer
	wake   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

type ClientOption func(*Client)

func WithSampleRate(sampleRate int) ClientOption {
	return func(c *Client) {
		if sampleRate > 0 {
			c.sampleRate = sampleRate
		}
	}
}

// WithFramesPerBuffer sets the device buffer size in samples. The default is
// 20ms at the configured sample rate.
func WithFramesPerBuffer(framesPerBuffer int) ClientOption {
	return func(c *Client) {
		if framesPerBuffer > 0 {
			c.framesPerBuffer = framesPerBuffer
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		sampleRate: audio.DefaultSampleRate,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.framesPerBuffer == 0 {
		c.framesPerBuffer = c.sampleRate / 50
	}
	c.in = make([]int16, c.framesPerBuffer)
	c.out = make([]int16, c.framesPerBuffer)

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	var err error
	if c.input, err = portaudio.OpenDefaultStream(1, 0, float64(c.sampleRate), c.framesPerBuffer, c.in); err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if c.output, err = portaudio.OpenDefaultStream(0, 1, float64(c.sampleRate), c.framesPerBuffer, c.out); err != nil {
		c.input.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := c.output.Start(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}

	go c.play()
	return c, nil
}

// Stream reads the microphone until ctx is done.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.input.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	defer c.input.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		default:
		}

		if err := c.input.Read(); err != nil {
			if err == portaudio.InputOverflowed {
				logger.Debug("portaudio input overflowed")
				continue
			}
			return fmt.Errorf("failed to read input stream: %w", err)
		}
		onAudio(audio.SamplesToBytes(c.in))
	}
}

func (c *Client) play() {
	chunk := make([]byte, c.framesPerBuffer*2)
	for {
		if c.buffer.Len() == 0 {
			select {
			case <-c.done:
				return
			case <-c.wake:
			}
			continue
		}

		c.buffer.Read(chunk)
		copy(c.out, audio.BytesToSamples(chunk))
		if err := c.output.Write(); err != nil && err != portaudio.OutputUnderflowed {
			logger.Warn("failed to write output stream", "error", err)
		}
	}
}

func (c *Client) SendAudio(audio []byte) error {
	c.buffer.Write(audio)
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (c *Client) ClearBuffer() {
	c.buffer.Clear()
}

func (c *Client) Mark(mark string, callback func(string)) error {
	c.buffer.Mark(mark, callback)
	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.sampleRate,
		Format:     audio.EncodingLinear16,
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.buffer.Clear()
		if c.output != nil {
			c.output.Close()
		}
		if c.input != nil {
			c.input.Close()
		}
		portaudio.Terminate()
	})
}
