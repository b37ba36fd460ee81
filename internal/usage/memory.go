package usage

import (
	"context"
	"sync"
	"time"
)

type MemoryCounter struct {
	limit int
	now   func() time.Time

	mu   sync.Mutex
	day  string
	used map[string]int
}

func NewMemoryCounter(limit int) *MemoryCounter {
	return &MemoryCounter{limit: limit, now: time.Now, used: make(map[string]int)}
}

func (c *MemoryCounter) Consume(_ context.Context, user string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollLocked()
	user = normalizeUser(user)
	if c.used[user] >= c.limit {
		return 0, ErrExhausted
	}
	c.used[user]++
	return c.limit - c.used[user], nil
}

func (c *MemoryCounter) Remaining(_ context.Context, user string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollLocked()
	left := c.limit - c.used[normalizeUser(user)]
	if left < 0 {
		left = 0
	}
	return left, nil
}

func (c *MemoryCounter) Limit() int   { return c.limit }
func (c *MemoryCounter) Close() error { return nil }

func (c *MemoryCounter) rollLocked() {
	day := dayKey(c.now())
	if day != c.day {
		c.day = day
		clear(c.used)
	}
}
