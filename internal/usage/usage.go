package usage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrExhausted means the user has no audio uploads left today.
var ErrExhausted = errors.New("daily audio limit reached")

// Counter tracks the daily audio allowance per user. Days roll over at UTC
// midnight.
type Counter interface {
	// Consume takes one unit and returns what is left afterwards.
	Consume(ctx context.Context, user string) (int, error)
	Remaining(ctx context.Context, user string) (int, error)
	Limit() int
	Close() error
}

// NewCounter uses Redis when redisURL is set and an in-process counter
// otherwise.
func NewCounter(ctx context.Context, redisURL string, limit int) (Counter, error) {
	if strings.TrimSpace(redisURL) == "" {
		return NewMemoryCounter(limit), nil
	}
	return NewRedisCounter(ctx, redisURL, limit)
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

func normalizeUser(user string) string {
	user = strings.TrimSpace(user)
	if user == "" {
		return "anonymous"
	}
	return user
}
