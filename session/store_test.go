package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client, "bb"), client
}

func TestCreateAndFindActive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	jti, err := store.Create(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if jti == "" {
		t.Fatal("expected non-empty jti")
	}

	rec, err := store.FindActive(ctx, jti)
	if err != nil {
		t.Fatalf("FindActive failed: %v", err)
	}
	if rec.UserID != "user-1" {
		t.Errorf("expected owner user-1, got %q", rec.UserID)
	}
	if !rec.RevokedAt.IsZero() {
		t.Error("new session should not be revoked")
	}
	if !rec.Active(time.Now()) {
		t.Error("new session should be active")
	}
}

func TestFindActiveUnknown(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.FindActive(context.Background(), "no-such-jti"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	jti, err := store.Create(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Revoke(ctx, jti); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := store.FindActive(ctx, jti); !errors.Is(err, ErrRevoked) {
		t.Errorf("expected ErrRevoked after revoke, got %v", err)
	}

	// Idempotent on repeats and unknown jtis.
	if err := store.Revoke(ctx, jti); err != nil {
		t.Errorf("second Revoke failed: %v", err)
	}
	if err := store.Revoke(ctx, "no-such-jti"); err != nil {
		t.Errorf("Revoke of unknown jti failed: %v", err)
	}
}

func TestConsumeForRotation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	jti, err := store.Create(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	uid, err := store.ConsumeForRotation(ctx, jti)
	if err != nil {
		t.Fatalf("ConsumeForRotation failed: %v", err)
	}
	if uid != "user-1" {
		t.Errorf("expected owner user-1, got %q", uid)
	}

	// The loser of a concurrent rotation sees the tombstone.
	if _, err := store.ConsumeForRotation(ctx, jti); !errors.Is(err, ErrRevoked) {
		t.Errorf("expected ErrRevoked on replayed rotation, got %v", err)
	}

	if _, err := store.ConsumeForRotation(ctx, "no-such-jti"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown jti, got %v", err)
	}
}

func TestConsumeForRotationExpired(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	// A record whose expiry has passed but whose key has not been swept yet.
	past := time.Now().Add(-time.Minute).Unix()
	if err := client.HSet(ctx, "bb:sess:stale", "uid", "user-1", "iat", past, "exp", past, "rev", 0).Err(); err != nil {
		t.Fatalf("seeding stale session failed: %v", err)
	}

	if _, err := store.ConsumeForRotation(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired session, got %v", err)
	}
}

func TestRevokeAll(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var jtis []string
	for i := 0; i < 3; i++ {
		jti, err := store.Create(ctx, "user-1", time.Hour)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		jtis = append(jtis, jti)
	}
	other, err := store.Create(ctx, "user-2", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.RevokeAll(ctx, "user-1"); err != nil {
		t.Fatalf("RevokeAll failed: %v", err)
	}

	for _, jti := range jtis {
		if _, err := store.FindActive(ctx, jti); !errors.Is(err, ErrRevoked) {
			t.Errorf("expected ErrRevoked for %s, got %v", jti, err)
		}
	}
	if _, err := store.FindActive(ctx, other); err != nil {
		t.Errorf("other user's session should survive, got %v", err)
	}

	count, err := store.ActiveCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("ActiveCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 active sessions, got %d", count)
	}
}

func TestPurgeAll(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	jti, err := store.Create(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.PurgeAll(ctx, "user-1"); err != nil {
		t.Fatalf("PurgeAll failed: %v", err)
	}

	// Unlike RevokeAll, no tombstone remains.
	if _, err := store.FindActive(ctx, jti); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after purge, got %v", err)
	}
}

func TestActiveCount(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	count, err := store.ActiveCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("ActiveCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 for unknown user, got %d", count)
	}

	first, err := store.Create(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(ctx, "user-1", time.Hour); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Revoke(ctx, first); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	count, err = store.ActiveCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("ActiveCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 active session, got %d", count)
	}
}
