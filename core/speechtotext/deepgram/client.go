package deepgram

import (
	"errors"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultListenURL = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en-US"
	chunkDuration    = 100 * time.Millisecond
)

var ErrNoAPIKey = errors.New("deepgram api key not found")

// TranscriptionClient transcribes finished utterances through Deepgram's
// streaming listen API, one websocket per utterance.
type TranscriptionClient struct {
	apiKey   string
	url      string
	model    string
	language string
	dialer   *websocket.Dialer
}

type ClientOption func(*TranscriptionClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) {
		c.apiKey = apiKey
	}
}

func WithURL(url string) ClientOption {
	return func(c *TranscriptionClient) {
		c.url = url
	}
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) {
		if model != "" {
			c.model = model
		}
	}
}

func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) {
		if language != "" {
			c.language = language
		}
	}
}

func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		url:      defaultListenURL,
		model:    defaultModel,
		language: defaultLanguage,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return client, nil
}
