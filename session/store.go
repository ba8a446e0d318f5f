package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no session exists for a jti, or when the
// stored session is past its expiry (an expired session is dead even before
// the TTL sweep collects it).
var ErrNotFound = errors.New("session not found")

// ErrRevoked is returned when a session exists but has already been
// revoked. Callers treat it like ErrNotFound for authorization purposes but
// may audit it separately: presenting a revoked jti is a replay signal.
var ErrRevoked = errors.New("session revoked")

// ErrUnavailable wraps backend failures.
var ErrUnavailable = errors.New("session store unavailable")

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusRevoked  int64 = 2
	rotateStatusRotated  int64 = 3
)

// revokeScript marks a session revoked if it is still active. Returns the
// same status codes as rotateScript so both paths share one vocabulary.
const revokeScript = `
local rev = redis.call("HGET", KEYS[1], "rev")
if not rev then
  return {0}
end
if rev ~= "0" then
  return {2}
end
redis.call("HSET", KEYS[1], "rev", ARGV[1])
return {3, redis.call("HGET", KEYS[1], "uid")}
`

var revokeLua = redis.NewScript(revokeScript)

// rotateScript is the compare-and-revoke at the heart of refresh rotation:
// of two concurrent refreshes presenting the same jti, exactly one observes
// rev == "0" and wins; the other sees the tombstone.
const rotateScript = `
local rev = redis.call("HGET", KEYS[1], "rev")
if not rev then
  return {0}
end
if rev ~= "0" then
  return {2}
end
local exp = tonumber(redis.call("HGET", KEYS[1], "exp"))
if not exp or exp <= tonumber(ARGV[2]) then
  return {1}
end
redis.call("HSET", KEYS[1], "rev", ARGV[1])
return {3, redis.call("HGET", KEYS[1], "uid")}
`

var rotateLua = redis.NewScript(rotateScript)

// Record is one refresh-token session. A zero RevokedAt means the session
// is active.
type Record struct {
	JTI       string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt time.Time
}

// Active reports whether the session is neither revoked nor expired at now.
func (r *Record) Active(now time.Time) bool {
	return r.RevokedAt.IsZero() && now.Before(r.ExpiresAt)
}

// Store is the Redis-backed session ledger. Revocation leaves a tombstone
// in place until the key's TTL expires, so a rotated-away jti can never be
// accepted again and its reuse remains observable.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a ledger backed by the given Redis client. prefix sets
// the key namespace.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "bb"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(jti string) string {
	return s.prefix + ":sess:" + jti
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":usess:" + userID
}

// Create persists a new active session and returns its jti.
func (s *Store) Create(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("session ttl must be positive")
	}

	jti := uuid.NewString()
	now := time.Now()

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := s.key(jti)
		pipe.HSet(ctx, key,
			"uid", userID,
			"iat", now.Unix(),
			"exp", now.Add(ttl).Unix(),
			"rev", 0,
		)
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, s.userKey(userID), jti)
		pipe.Expire(ctx, s.userKey(userID), ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return jti, nil
}

// FindActive returns the session only if it exists, is unrevoked, and is
// not past its expiry.
func (s *Store) FindActive(ctx context.Context, jti string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(jti)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rec, err := recordFromFields(jti, fields)
	if err != nil {
		return nil, err
	}
	if !rec.RevokedAt.IsZero() {
		return nil, ErrRevoked
	}
	if !time.Now().Before(rec.ExpiresAt) {
		return nil, ErrNotFound
	}

	return rec, nil
}

// Revoke marks the session revoked. Idempotent: revoking a missing or
// already-revoked session is not an error.
func (s *Store) Revoke(ctx context.Context, jti string) error {
	_, err := revokeLua.Run(ctx, s.redis, []string{s.key(jti)}, time.Now().Unix()).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ConsumeForRotation atomically revokes an active session and returns its
// owner. Exactly one of any number of concurrent calls for the same jti
// succeeds; the rest observe ErrRevoked.
func (s *Store) ConsumeForRotation(ctx context.Context, jti string) (string, error) {
	now := time.Now().Unix()
	result, err := rotateLua.Run(ctx, s.redis, []string{s.key(jti)}, now, now).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return "", fmt.Errorf("%w: invalid rotation script response", ErrUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return "", fmt.Errorf("%w: invalid rotation script status", ErrUnavailable)
	}

	switch code {
	case rotateStatusNotFound, rotateStatusExpired:
		return "", ErrNotFound
	case rotateStatusRevoked:
		return "", ErrRevoked
	case rotateStatusRotated:
		if len(parts) < 2 {
			return "", fmt.Errorf("%w: missing session owner", ErrUnavailable)
		}
		uid, ok := parts[1].(string)
		if !ok || uid == "" {
			return "", fmt.Errorf("%w: invalid session owner", ErrUnavailable)
		}
		return uid, nil
	default:
		return "", fmt.Errorf("%w: unknown rotation script status", ErrUnavailable)
	}
}

// RevokeAll revokes every tracked session for a user. Used for "logout
// everywhere", on password reset, and (by policy) on login.
func (s *Store) RevokeAll(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	jtis, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := time.Now().Unix()
	for _, jti := range jtis {
		if _, err := revokeLua.Run(ctx, s.redis, []string{s.key(jti)}, now).Result(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if err := s.redis.Del(ctx, userKey).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// PurgeAll removes every session record for a user, tombstones included.
// Only account deletion uses this; ordinary logout keeps tombstones so
// replay of a rotated token stays detectable.
func (s *Store) PurgeAll(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	jtis, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	keys := make([]string, 0, len(jtis)+1)
	for _, jti := range jtis {
		keys = append(keys, s.key(jti))
	}
	keys = append(keys, userKey)

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ActiveCount returns the number of currently active sessions for a user.
func (s *Store) ActiveCount(ctx context.Context, userID string) (int, error) {
	jtis, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(jtis) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(jtis))
	for i, jti := range jtis {
		cmds[i] = pipe.HGetAll(ctx, s.key(jti))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := time.Now()
	count := 0
	for i, cmd := range cmds {
		fields, cmdErr := cmd.Result()
		if cmdErr != nil || len(fields) == 0 {
			continue
		}
		rec, recErr := recordFromFields(jtis[i], fields)
		if recErr != nil {
			continue
		}
		if rec.Active(now) {
			count++
		}
	}

	return count, nil
}

func recordFromFields(jti string, fields map[string]string) (*Record, error) {
	uid := fields["uid"]
	if uid == "" {
		return nil, fmt.Errorf("%w: session record missing owner", ErrUnavailable)
	}

	iat, err := strconv.ParseInt(fields["iat"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad session created-at", ErrUnavailable)
	}
	exp, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad session expiry", ErrUnavailable)
	}
	rev, err := strconv.ParseInt(fields["rev"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad session revocation", ErrUnavailable)
	}

	rec := &Record{
		JTI:       jti,
		UserID:    uid,
		CreatedAt: time.Unix(iat, 0),
		ExpiresAt: time.Unix(exp, 0),
	}
	if rev != 0 {
		rec.RevokedAt = time.Unix(rev, 0)
	}

	return rec, nil
}
