package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrDenylistRedisUnavailable = errors.New("denylist redis unavailable")

// DenylistStore records revoked access-token ids until they would have expired anyway.
type DenylistStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewDenylistStore(redisClient redis.UniversalClient, prefix string) *DenylistStore {
	if prefix == "" {
		prefix = "otd"
	}
	return &DenylistStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *DenylistStore) key(jti string) string {
	return s.prefix + ":" + jti
}

// Add denies jti for ttl. Non-positive ttl is a no-op since the token is already expired.
func (s *DenylistStore) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDenylistRedisUnavailable, err)
	}
	return nil
}

// Contains reports whether jti has been denied.
func (s *DenylistStore) Contains(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDenylistRedisUnavailable, err)
	}
	return n == 1, nil
}
