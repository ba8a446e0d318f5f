package authkit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// createDeletionScript records a deletion request only if none exists for
// the user yet, so two concurrent requests cannot both proceed to the
// cascade.
const createDeletionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "reason", ARGV[1],
  "status", ARGV[2],
  "requested", ARGV[3])
return 1
`

var createDeletionLua = redis.NewScript(createDeletionScript)

// deletionStore tracks account-deletion requests through their
// pending -> processed lifecycle. Processed records are retained for a
// while as an audit trail, then age out.
type deletionStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

func newDeletionStore(client redis.UniversalClient, prefix string, retention time.Duration) *deletionStore {
	return &deletionStore{redis: client, prefix: prefix, retention: retention}
}

func (s *deletionStore) key(userID string) string {
	return s.prefix + ":del:" + userID
}

// createPending records a new pending request. ErrDeletionPending is
// returned when a request for the user already exists, processed or not.
func (s *deletionStore) createPending(ctx context.Context, userID, reason string) error {
	keys := []string{s.key(userID)}
	result, err := createDeletionLua.Run(ctx, s.redis, keys, reason, string(DeletionPending), time.Now().Unix()).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	code, ok := result.(int64)
	if !ok {
		return fmt.Errorf("%w: invalid deletion script response", ErrStoreUnavailable)
	}
	if code != 1 {
		return ErrDeletionPending
	}
	return nil
}

// markProcessed flips the request to processed and starts its retention
// clock.
func (s *deletionStore) markProcessed(ctx context.Context, userID string) error {
	key := s.key(userID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"status", string(DeletionProcessed),
			"processed", time.Now().Unix(),
		)
		pipe.Expire(ctx, key, s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// status returns the request state for a user, or "" when no request
// exists.
func (s *deletionStore) status(ctx context.Context, userID string) (DeletionStatus, error) {
	value, err := s.redis.HGet(ctx, s.key(userID), "status").Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return DeletionStatus(value), nil
}
