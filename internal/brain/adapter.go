package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Request is one learner turn sent to the tutor brain.
type Request struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// Response is the tutor reply. Correction holds the "Correction:" line when
// the reply contains one.
type Response struct {
	Text       string `json:"text"`
	Correction string `json:"correction,omitempty"`
}

// Adapter produces English-teacher replies.
type Adapter interface {
	Reply(ctx context.Context, req Request) (Response, error)
}

// Config controls adapter construction.
type Config struct {
	Mode         string
	GeminiAPIKey string
	GeminiModel  string
	Temperature  float64
	HTTPURL      string
	Timeout      time.Duration
}

// NewAdapter builds the adapter selected by cfg.Mode: auto, gemini, http or
// mock. The returned close func releases client resources and is never nil.
func NewAdapter(ctx context.Context, cfg Config) (Adapter, func() error, error) {
	noop := func() error { return nil }
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		return newAutoAdapter(ctx, cfg)
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, noop, errors.New("gemini API key is required for gemini mode")
		}
		g, err := NewGeminiAdapter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Temperature)
		if err != nil {
			return nil, noop, err
		}
		return g, g.Close, nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, noop, errors.New("brain HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL, cfg.Timeout), noop, nil
	case "mock":
		return NewMockAdapter(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported brain mode %q", cfg.Mode)
	}
}

func newAutoAdapter(ctx context.Context, cfg Config) (Adapter, func() error, error) {
	noop := func() error { return nil }
	mock := NewMockAdapter()

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		if g, err := NewGeminiAdapter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Temperature); err == nil {
			return NewFallbackAdapter(g, mock), g.Close, nil
		}
	}
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		return NewFallbackAdapter(NewHTTPAdapter(cfg.HTTPURL, cfg.Timeout), mock), noop, nil
	}
	return mock, noop, nil
}

// SplitCorrection returns the first line starting with "Correction:" without
// its prefix, or "".
func SplitCorrection(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-* ")
		if len(line) < len("Correction:") {
			continue
		}
		if strings.EqualFold(line[:len("Correction:")], "Correction:") {
			return strings.TrimSpace(line[len("Correction:"):])
		}
	}
	return ""
}

func newResponse(text string) Response {
	text = strings.TrimSpace(text)
	return Response{Text: text, Correction: SplitCorrection(text)}
}
