package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter gives a deterministic reply when no model is configured.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Reply(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}
	return Response{Text: FallbackReply(req.Text)}, nil
}

func FallbackReply(text string) string {
	return fmt.Sprintf("English teacher (fallback): I read: '%s'. Try to write short sentences. (Enable Gemini for smarter replies.)", strings.TrimSpace(text))
}
