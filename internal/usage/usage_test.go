package usage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounterConsumesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter(2)

	left, err := c.Consume(ctx, "junior")
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	left, err = c.Consume(ctx, "junior")
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	_, err = c.Consume(ctx, "junior")
	require.ErrorIs(t, err, ErrExhausted)

	other, err := c.Remaining(ctx, "maria")
	require.NoError(t, err)
	assert.Equal(t, 2, other)
}

func TestMemoryCounterRollsOverAtUTCMidnight(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 23, 59, 0, 0, time.UTC)
	c := NewMemoryCounter(1)
	c.now = func() time.Time { return now }

	_, err := c.Consume(ctx, "junior")
	require.NoError(t, err)
	_, err = c.Consume(ctx, "junior")
	require.ErrorIs(t, err, ErrExhausted)

	now = now.Add(2 * time.Minute)
	left, err := c.Remaining(ctx, "junior")
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}

func TestNextMidnight(t *testing.T) {
	at := time.Date(2026, 12, 31, 18, 30, 0, 0, time.FixedZone("BRT", -3*3600))
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), nextMidnight(at))
	assert.Equal(t, "2026-12-31", dayKey(at))
}

func TestNewCounterWithoutRedisIsInMemory(t *testing.T) {
	c, err := NewCounter(context.Background(), "", 10)
	require.NoError(t, err)
	defer c.Close()
	assert.IsType(t, &MemoryCounter{}, c)
	assert.Equal(t, 10, c.Limit())
}

func TestNewCounterRejectsBadRedisURL(t *testing.T) {
	_, err := NewCounter(context.Background(), "not-a-url://", 10)
	require.Error(t, err)
}

func TestRedisCounter(t *testing.T) {
	url := os.Getenv("LINGUA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LINGUA_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedisCounter(ctx, url, 2)
	require.NoError(t, err)
	defer c.Close()
	c.prefix = "lingua:test:" + uuid.NewString()

	left, err := c.Consume(ctx, "junior")
	require.NoError(t, err)
	assert.Equal(t, 1, left)
	_, err = c.Consume(ctx, "junior")
	require.NoError(t, err)
	_, err = c.Consume(ctx, "junior")
	require.ErrorIs(t, err, ErrExhausted)

	left, err = c.Remaining(ctx, "junior")
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	ttl, err := c.client.TTL(ctx, c.key("junior", time.Now())).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= 24*time.Hour, "ttl = %s", ttl)
}
