package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voicecode/core/audio"
	"github.com/koscakluka/ema-voicecode/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Transcribe streams the utterance to Deepgram and returns the joined final
// transcript. It returns early with ctx.Err() when ctx is done.
func (c *TranscriptionClient) Transcribe(ctx context.Context, utterance *audio.Utterance, opts ...speechtotext.TranscriptionOption) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe utterance")
	defer span.End()

	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	encoding := utterance.EncodingInfo()
	span.SetAttributes(
		attribute.Int("request.sample_rate", encoding.SampleRate),
		attribute.Float64("request.duration_seconds", utterance.Duration().Seconds()),
	)
	listenURL, err := c.listenURL(encoding)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	conn, _, err := c.dialer.DialContext(ctx, listenURL, http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to deepgram: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { conn.Close() }) }
	defer closeConn()
	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	type result struct {
		transcript string
		err        error
	}
	results := make(chan result, 1)
	go func() {
		transcript, err := readTranscript(conn, options)
		results <- result{transcript, err}
	}()

	if err := sendUtterance(conn, utterance); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-results:
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if r.err != nil {
			span.RecordError(r.err)
			span.SetStatus(codes.Error, r.err.Error())
			return "", r.err
		}
		span.SetAttributes(attribute.Int("response.transcript_length", len(r.transcript)))
		return r.transcript, nil
	}
}

func (c *TranscriptionClient) listenURL(encoding audio.EncodingInfo) (string, error) {
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 44100, 48000:
	default:
		return "", fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}
	if encoding.Format != audio.EncodingLinear16 {
		return "", fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}

	listenURL, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram url: %w", err)
	}
	query := listenURL.Query()
	query.Set("encoding", encoding.Format.Name())
	query.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	query.Set("channels", "1")
	query.Set("model", c.model)
	query.Set("language", c.language)
	query.Set("smart_format", "true")
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

func sendUtterance(conn *websocket.Conn, utterance *audio.Utterance) error {
	pcm := utterance.PCM()
	chunkSize := utterance.EncodingInfo().BytesFor(chunkDuration)
	if chunkSize <= 0 {
		chunkSize = len(pcm)
	}

	for start := 0; start < len(pcm); start += chunkSize {
		end := min(start+chunkSize, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return fmt.Errorf("failed to write audio to deepgram: %w", err)
		}
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

// readTranscript collects final results until Deepgram closes the socket.
func readTranscript(conn *websocket.Conn, options speechtotext.TranscriptionOptions) (string, error) {
	var segments []string
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, websocket.ErrCloseSent) {
				return strings.Join(segments, " "), nil
			}
			if len(segments) > 0 {
				logger.Warn("deepgram connection ended abruptly", "error", err)
				return strings.Join(segments, " "), nil
			}
			return "", fmt.Errorf("failed to read deepgram message: %w", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		if segment, ok := finalSegment(msg); ok {
			segments = append(segments, segment)
			if options.PartialTranscriptionCallback != nil {
				options.PartialTranscriptionCallback(segment)
			}
		}
	}
}

func finalSegment(msg []byte) (string, bool) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return "", false
	}
	if api.TypeResponse(parsedMsg.Type) != api.TypeMessageResponse {
		return "", false
	}

	var msgResp api.MessageResponse
	if err := json.Unmarshal(msg, &msgResp); err != nil {
		logger.Warn("failed to unmarshal deepgram results", "error", err)
		return "", false
	}
	if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
		return "", false
	}

	transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
	return transcript, transcript != ""
}
