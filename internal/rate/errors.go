package rate

import "errors"

var (
	// ErrRateLimited is returned by callers that reject a window whose count exceeds its limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis failure raised while counting.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
