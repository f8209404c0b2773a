package deepgram

import (
	"fmt"
	"net/http"
	"os"
	"slices"

	"github.com/koscakluka/ema-voicecode/core/audio"
	"github.com/koscakluka/ema-voicecode/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultURL        = "https://api.deepgram.com/v1/speak"
	defaultSampleRate = 24000
)

// TextToSpeechClient synthesizes speech with the hosted speak endpoint.
type TextToSpeechClient struct {
	apiKey     string
	url        string
	voice      Voice
	sampleRate int
	httpClient *http.Client
}

type ClientOption func(*TextToSpeechClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

func WithURL(url string) ClientOption {
	return func(c *TextToSpeechClient) { c.url = url }
}

func WithVoice(voice Voice) ClientOption {
	return func(c *TextToSpeechClient) { c.voice = voice }
}

func WithSampleRate(sampleRate int) ClientOption {
	return func(c *TextToSpeechClient) { c.sampleRate = sampleRate }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *TextToSpeechClient) { c.httpClient = client }
}

func NewTextToSpeechClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		apiKey:     os.Getenv("DEEPGRAM_API_KEY"),
		url:        defaultURL,
		voice:      defaultVoice,
		sampleRate: defaultSampleRate,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, texttospeech.ErrNoAPIKey
	}
	if !slices.Contains(GetAvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice %q", client.voice)
	}
	if client.sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", client.sampleRate)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
	}

	return client, nil
}

func (c *TextToSpeechClient) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.sampleRate,
		Format:     audio.EncodingLinear16,
	}
}

func (c *TextToSpeechClient) Voice() Voice {
	return c.voice
}
