package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript increments the day's counter, sets its expiry on first use and
// refuses to go past the limit.
var consumeScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('EXPIREAT', KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
	redis.call('DECR', KEYS[1])
	return -1
end
return n
`)

// RedisCounter keeps allowances in Redis so several agent instances share
// them.
type RedisCounter struct {
	client *redis.Client
	limit  int
	prefix string
	now    func() time.Time
}

func NewRedisCounter(ctx context.Context, redisURL string, limit int) (*RedisCounter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCounter{client: client, limit: limit, prefix: "lingua:audio", now: time.Now}, nil
}

func (c *RedisCounter) key(user string, t time.Time) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, normalizeUser(user), dayKey(t))
}

func (c *RedisCounter) Consume(ctx context.Context, user string) (int, error) {
	now := c.now()
	n, err := consumeScript.Run(ctx, c.client, []string{c.key(user, now)}, c.limit, nextMidnight(now).Unix()).Int()
	if err != nil {
		return 0, fmt.Errorf("consume allowance: %w", err)
	}
	if n < 0 {
		return 0, ErrExhausted
	}
	return c.limit - n, nil
}

func (c *RedisCounter) Remaining(ctx context.Context, user string) (int, error) {
	used, err := c.client.Get(ctx, c.key(user, c.now())).Int()
	if errors.Is(err, redis.Nil) {
		return c.limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read allowance: %w", err)
	}
	if used >= c.limit {
		return 0, nil
	}
	return c.limit - used, nil
}

func (c *RedisCounter) Limit() int { return c.limit }

func (c *RedisCounter) Close() error {
	return c.client.Close()
}
