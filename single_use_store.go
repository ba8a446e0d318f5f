package authkit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookbuddy/authkit/internal"
)

type tokenPurpose string

const (
	purposeEmailVerify   tokenPurpose = "verify"
	purposePasswordReset tokenPurpose = "reset"
)

const (
	consumeStatusNotFound int64 = 0
	consumeStatusUsed     int64 = 1
	consumeStatusExpired  int64 = 2
	consumeStatusOK       int64 = 3
)

// consumeSingleUseScript marks a token used exactly once. Distinct statuses
// for missing, already-used, and expired records let the engine report
// expiry separately while keeping everything else uniform.
const consumeSingleUseScript = `
local uid = redis.call("HGET", KEYS[1], "uid")
if not uid then
  return {0}
end
if redis.call("HGET", KEYS[1], "used") ~= "0" then
  return {1}
end
local exp = tonumber(redis.call("HGET", KEYS[1], "exp"))
if not exp or exp <= tonumber(ARGV[1]) then
  return {2}
end
redis.call("HSET", KEYS[1], "used", "1")
return {3, uid}
`

var consumeSingleUseLua = redis.NewScript(consumeSingleUseScript)

// singleUseStore backs both email verification and password reset. Only the
// SHA-256 digest of a secret is ever persisted, and the digest is the key,
// so lookup and at-rest opacity come from the same property.
type singleUseStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

func newSingleUseStore(client redis.UniversalClient, prefix string, retention time.Duration) *singleUseStore {
	return &singleUseStore{redis: client, prefix: prefix, retention: retention}
}

func (s *singleUseStore) key(purpose tokenPurpose, digest string) string {
	return s.prefix + ":sut:" + string(purpose) + ":" + digest
}

func (s *singleUseStore) userKey(purpose tokenPurpose, userID string) string {
	return s.prefix + ":sutu:" + string(purpose) + ":" + userID
}

// issue replaces any prior unused token for (purpose, user) and returns the
// plaintext secret. The plaintext is never retrievable again.
func (s *singleUseStore) issue(ctx context.Context, purpose tokenPurpose, userID string, ttl time.Duration) (string, error) {
	secret, err := internal.NewSingleUseSecret()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	digest := internal.HashSecret(secret)

	if err := s.invalidate(ctx, purpose, userID); err != nil {
		return "", err
	}

	// Keys outlive the expiry by the retention window so a late confirm is
	// answered with an expiry error rather than a generic invalid one.
	keyTTL := ttl + s.retention
	now := time.Now()

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := s.key(purpose, digest)
		pipe.HSet(ctx, key,
			"uid", userID,
			"exp", now.Add(ttl).Unix(),
			"used", 0,
		)
		pipe.Expire(ctx, key, keyTTL)
		pipe.Set(ctx, s.userKey(purpose, userID), digest, keyTTL)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return secret, nil
}

// consume looks up the supplied plaintext by digest and marks it used. On
// success it returns the owning user ID.
func (s *singleUseStore) consume(ctx context.Context, purpose tokenPurpose, secret string) (string, error) {
	if secret == "" {
		return "", ErrTokenInvalid
	}
	digest := internal.HashSecret(secret)

	result, err := consumeSingleUseLua.Run(ctx, s.redis, []string{s.key(purpose, digest)}, time.Now().Unix()).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return "", fmt.Errorf("%w: invalid consume script response", ErrStoreUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return "", fmt.Errorf("%w: invalid consume script status", ErrStoreUnavailable)
	}

	switch code {
	case consumeStatusNotFound, consumeStatusUsed:
		return "", ErrTokenInvalid
	case consumeStatusExpired:
		return "", ErrTokenExpired
	case consumeStatusOK:
		if len(parts) < 2 {
			return "", fmt.Errorf("%w: missing token owner", ErrStoreUnavailable)
		}
		uid, ok := parts[1].(string)
		if !ok || uid == "" {
			return "", fmt.Errorf("%w: invalid token owner", ErrStoreUnavailable)
		}
		return uid, nil
	default:
		return "", fmt.Errorf("%w: unknown consume script status", ErrStoreUnavailable)
	}
}

// invalidate removes the user's current token for a purpose, if any.
func (s *singleUseStore) invalidate(ctx context.Context, purpose tokenPurpose, userID string) error {
	digest, err := s.redis.GetDel(ctx, s.userKey(purpose, userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if digest == "" {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(purpose, digest)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// invalidateAll removes the user's tokens for every purpose. Account
// deletion uses it.
func (s *singleUseStore) invalidateAll(ctx context.Context, userID string) error {
	for _, purpose := range []tokenPurpose{purposeEmailVerify, purposePasswordReset} {
		if err := s.invalidate(ctx, purpose, userID); err != nil {
			return err
		}
	}
	return nil
}
