package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type speakRequest struct {
	Text string `json:"text"`
}

// Synthesize posts text to the speak endpoint and streams the raw linear16
// body to onAudio in 100ms chunks as it arrives.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, onAudio func([]byte) error) (err error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	defer func() {
		if err != nil && !errors.Is(err, context.Canceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	span.SetAttributes(
		attribute.String("speech.voice", string(c.voice)),
		attribute.Int("speech.characters", len(text)),
	)

	req, err := c.newRequest(ctx, text)
	if err != nil {
		return err
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		span.SetAttributes(attribute.String("response.error", string(body)))
		return fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	chunkSize := c.EncodingInfo().BytesFor(100 * time.Millisecond)
	buf := make([]byte, chunkSize)
	// odd holds a byte split off from a sample at a read boundary
	var odd []byte
	firstChunk := true
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := append(odd, buf[:n]...)
			odd = nil
			if len(chunk)%2 == 1 {
				odd = []byte{chunk[len(chunk)-1]}
				chunk = chunk[:len(chunk)-1]
			}
			if len(chunk) > 0 {
				if firstChunk {
					span.SetAttributes(attribute.Int64("time_to_first_audio_ms", time.Since(requestStart).Milliseconds()))
					firstChunk = false
				}
				if err := onAudio(chunk); err != nil {
					return err
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("error reading audio: %w", readErr)
		}
	}
}

func (c *TextToSpeechClient) newRequest(ctx context.Context, text string) (*http.Request, error) {
	endpoint, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	query := endpoint.Query()
	query.Set("model", string(c.voice))
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(c.sampleRate))
	query.Set("container", "none")
	endpoint.RawQuery = query.Encode()

	body, err := json.Marshal(speakRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)
	return req, nil
}
