package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Clip is an uploaded recording.
type Clip struct {
	Data     []byte
	Filename string
}

// Audio is synthesized speech. Ext has no leading dot.
type Audio struct {
	Data        []byte
	Ext         string
	ContentType string
}

type Transcriber interface {
	Transcribe(ctx context.Context, clip Clip) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// Provider does both directions.
type Provider interface {
	Transcriber
	Synthesizer
}

var ErrNothingToSay = errors.New("nothing to synthesize")

type Config struct {
	Mode     string
	APIKey   string
	BaseURL  string
	STTModel string
	TTSModel string
	Voice    string
}

// NewProvider selects the speech backend: auto, openai or mock. Auto uses
// OpenAI when an API key is set.
func NewProvider(cfg Config) (Provider, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}
	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewOpenAIProvider(cfg), nil
		}
		return NewMockProvider(), nil
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("openai API key is required for openai speech")
		}
		return NewOpenAIProvider(cfg), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported speech provider %q", cfg.Mode)
	}
}
