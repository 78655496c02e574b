package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var ErrSettingsRedisUnavailable = errors.New("settings redis unavailable")

// SettingsHashStore reads runtime flags from a single Redis hash.
type SettingsHashStore struct {
	redis redis.UniversalClient
	key   string
}

func NewSettingsHashStore(redisClient redis.UniversalClient, key string) *SettingsHashStore {
	if key == "" {
		key = "ots:settings"
	}
	return &SettingsHashStore{
		redis: redisClient,
		key:   key,
	}
}

// Load returns every field of the hash. A missing hash yields an empty map.
func (s *SettingsHashStore) Load(ctx context.Context) (map[string]string, error) {
	values, err := s.redis.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettingsRedisUnavailable, err)
	}
	return values, nil
}

// Set writes a single field.
func (s *SettingsHashStore) Set(ctx context.Context, field, value string) error {
	if err := s.redis.HSet(ctx, s.key, field, value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsRedisUnavailable, err)
	}
	return nil
}
