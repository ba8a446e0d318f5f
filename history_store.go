package authkit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// historyStore keeps a capped, newest-first list of auth events per user.
// Entries age out with the retention TTL; the cap bounds memory for very
// active accounts.
type historyStore struct {
	redis     redis.UniversalClient
	prefix    string
	max       int
	retention time.Duration
}

func newHistoryStore(client redis.UniversalClient, prefix string, cfg HistoryConfig) *historyStore {
	return &historyStore{
		redis:     client,
		prefix:    prefix,
		max:       cfg.MaxEntries,
		retention: cfg.Retention,
	}
}

func (s *historyStore) key(userID string) string {
	return s.prefix + ":hist:" + userID
}

func (s *historyStore) record(ctx context.Context, userID string, entry HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	key := s.key(userID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(s.max-1))
		pipe.Expire(ctx, key, s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// list returns up to limit entries, newest first. limit <= 0 means all
// retained entries.
func (s *historyStore) list(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	raw, err := s.redis.LRange(ctx, s.key(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	entries := make([]HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *historyStore) purge(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
