package authkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookbuddy/authkit/internal"
)

const codePurposeLogin = "login"

// consumeCodeScript accepts a code only if it matches exactly, is unused,
// and is unexpired, then marks it used. One status for every failure keeps
// the caller's error uniform.
const consumeCodeScript = `
local code = redis.call("HGET", KEYS[1], "code")
if not code or code ~= ARGV[1] then
  return 0
end
if redis.call("HGET", KEYS[1], "used") ~= "0" then
  return 0
end
local exp = tonumber(redis.call("HGET", KEYS[1], "exp"))
if not exp or exp <= tonumber(ARGV[2]) then
  return 0
end
redis.call("HSET", KEYS[1], "used", "1")
return 1
`

var consumeCodeLua = redis.NewScript(consumeCodeScript)

// codeStore holds short numeric login-verification codes, one active code
// per (email, purpose). Codes are stored as-is: the short TTL and low value
// make hashed storage optional here.
type codeStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	digits int
}

func newCodeStore(client redis.UniversalClient, prefix string, cfg CodeConfig) *codeStore {
	return &codeStore{
		redis:  client,
		prefix: prefix,
		ttl:    cfg.TTL,
		digits: cfg.Digits,
	}
}

func (s *codeStore) key(email, purpose string) string {
	return s.prefix + ":code:" + purpose + ":" + strings.ToLower(email)
}

// issue replaces any prior code for (email, purpose) and returns the new
// code.
func (s *codeStore) issue(ctx context.Context, email, purpose string) (string, error) {
	code, err := internal.NewNumericCode(s.digits)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	key := s.key(email, purpose)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code", code,
			"exp", time.Now().Add(s.ttl).Unix(),
			"used", 0,
		)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return code, nil
}

// consume accepts the supplied code exactly once. Every failure mode maps
// to ErrCodeInvalid.
func (s *codeStore) consume(ctx context.Context, email, purpose, supplied string) error {
	if supplied == "" {
		return ErrCodeInvalid
	}

	result, err := consumeCodeLua.Run(ctx, s.redis, []string{s.key(email, purpose)}, supplied, time.Now().Unix()).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	code, ok := result.(int64)
	if !ok {
		return fmt.Errorf("%w: invalid code script response", ErrStoreUnavailable)
	}
	if code != 1 {
		return ErrCodeInvalid
	}
	return nil
}

// purge removes any code for (email, purpose). Account deletion uses it.
func (s *codeStore) purge(ctx context.Context, email, purpose string) error {
	if err := s.redis.Del(ctx, s.key(email, purpose)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
