package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "otr"

// incrWindowLua increments the window and arms its TTL on the first hit.
// KEYS[1] = window key
// ARGV[1] = window length in milliseconds
var incrWindowLua = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// Counter is a fixed-window counter keyed by (operation, identity).
type Counter struct {
	redis  redis.UniversalClient
	prefix string
}

// NewCounter creates a [Counter] backed by the given Redis client. An empty
// prefix selects the default key namespace.
func NewCounter(redisClient redis.UniversalClient, prefix string) *Counter {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Counter{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Key returns the Redis key of the window for (operation, identity).
func (c *Counter) Key(operation, identity string) string {
	return c.prefix + ":" + operation + ":" + identity
}

// Increment adds one hit to the window and returns the new count. A fresh
// window starts at 1 and expires after window.
func (c *Counter) Increment(ctx context.Context, operation, identity string, window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, errors.New("rate: window must be > 0")
	}

	count, err := incrWindowLua.Run(ctx, c.redis, []string{c.Key(operation, identity)}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

// Count returns the current count of the window. Missing windows count as zero.
func (c *Counter) Count(ctx context.Context, operation, identity string) (int64, error) {
	count, err := c.redis.Get(ctx, c.Key(operation, identity)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

// Remaining returns max(0, limit-count) for the window.
func (c *Counter) Remaining(ctx context.Context, operation, identity string, limit int) (int, error) {
	count, err := c.Count(ctx, operation, identity)
	if err != nil {
		return 0, err
	}
	remaining := int64(limit) - count
	if remaining < 0 {
		return 0, nil
	}
	return int(remaining), nil
}

// Reset deletes the window.
func (c *Counter) Reset(ctx context.Context, operation, identity string) error {
	if err := c.redis.Del(ctx, c.Key(operation, identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
