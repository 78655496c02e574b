package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRefreshHashMismatch means the presented token does not belong to
	// the stored session. The session has been deleted.
	ErrRefreshHashMismatch = errors.New("refresh hash mismatch")
	// ErrRefreshSessionNotFound means the session was rotated, revoked, or expired.
	ErrRefreshSessionNotFound = errors.New("refresh session not found")
	// ErrRefreshSessionCorrupt is returned when the stored blob cannot be parsed.
	ErrRefreshSessionCorrupt = errors.New("refresh session corrupt")
	ErrRedisUnavailable      = errors.New("redis unavailable")
)

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusMismatch    int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// KEYS[1] = old session key
// KEYS[2] = new session key
// ARGV[1] = old session id
// ARGV[2] = new session id
// ARGV[3] = user index key prefix
// ARGV[4] = provided refresh hash
// ARGV[5] = new session blob
// ARGV[6] = new session ttl in ms
// ARGV[7] = now (unix seconds)
const rotateRefreshScript = `
local function read_be64(s, i)
  local v = 0
  for k = 0, 7 do
    local b = string.byte(s, i + k)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local function parse_session(data)
  if string.byte(data, 1) ~= 1 then
    return nil
  end
  local user_len = string.byte(data, 2)
  if not user_len then
    return nil
  end
  local idx = 3
  if #data ~= idx + user_len + 32 + 16 - 1 then
    return nil
  end
  local user_id = string.sub(data, idx, idx + user_len - 1)
  idx = idx + user_len
  local refresh_hash = string.sub(data, idx, idx + 31)
  idx = idx + 32 + 8
  local expires_at = read_be64(data, idx)
  if not expires_at then
    return nil
  end
  return { user_id = user_id, refresh_hash = refresh_hash, expires_at = expires_at }
end

local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local parsed = parse_session(data)
if not parsed then
  return {4}
end

local user_key = ARGV[3] .. parsed.user_id

if parsed.expires_at <= tonumber(ARGV[7]) then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", user_key, ARGV[1])
  return {1}
end

if parsed.refresh_hash ~= ARGV[4] then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", user_key, ARGV[1])
  return {2, parsed.user_id}
end

redis.call("DEL", KEYS[1])
redis.call("SREM", user_key, ARGV[1])
redis.call("SET", KEYS[2], ARGV[5], "PX", ARGV[6])
redis.call("SADD", user_key, ARGV[2])
redis.call("PEXPIRE", user_key, ARGV[6])
return {3, parsed.user_id}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed refresh-session store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a session [Store]. prefix sets the Redis key namespace.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ots"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock replaces the clock used for expiry checks during rotation.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKeyPrefix() string {
	return s.prefix + ":u:"
}

func (s *Store) userKey(userID string) string {
	return s.userKeyPrefix() + userID
}

// Save persists sess and indexes it under its user.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	userKey := s.userKey(sess.UserID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, userKey, sess.SessionID)
		pipe.PExpire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the session for sessionID or [ErrRefreshSessionNotFound].
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRefreshSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrRefreshSessionCorrupt, err)
	}
	sess.SessionID = sessionID
	return sess, nil
}

// Rotate atomically swaps the session identified by oldID for next, provided
// the stored refresh hash equals providedHash. It returns the owning user id.
func (s *Store) Rotate(
	ctx context.Context,
	oldID string,
	providedHash [32]byte,
	next *Session,
	ttl time.Duration,
) (string, error) {
	blob, err := Encode(next)
	if err != nil {
		return "", err
	}

	result, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(oldID), s.key(next.SessionID)},
		oldID,
		next.SessionID,
		s.userKeyPrefix(),
		string(providedHash[:]),
		string(blob),
		ttl.Milliseconds(),
		s.now().Unix(),
	).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return "", fmt.Errorf("%w: invalid refresh script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return "", fmt.Errorf("%w: invalid refresh script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound, rotateStatusExpired:
		return "", ErrRefreshSessionNotFound
	case rotateStatusMismatch:
		return scriptUserID(parts), ErrRefreshHashMismatch
	case rotateStatusRotated:
		return scriptUserID(parts), nil
	case rotateStatusInvalidBlob:
		return "", ErrRefreshSessionCorrupt
	default:
		return "", fmt.Errorf("%w: unknown refresh script status", ErrRedisUnavailable)
	}
}

// Delete removes a single session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrRefreshSessionNotFound) {
			return nil
		}
		return err
	}
	return s.deleteSessionAndIndex(ctx, sess.UserID, sessionID)
}

// DeleteAllForUser removes every indexed session of userID.
//
// The index is read before the delete, so a session saved concurrently may
// survive; it still expires with its refresh token.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, id := range sessionIDs {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, userKey)

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	n := int(deleted.Val())
	if len(sessionIDs) > 0 && n > 0 {
		// The index key itself is counted when it existed.
		n--
	}
	return n, nil
}

// ActiveSessionIDs returns the tracked session ids of userID.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	_, err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID), s.userKey(userID)}, sessionID).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func scriptUserID(parts []interface{}) string {
	if len(parts) < 2 {
		return ""
	}
	switch v := parts[1].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}
