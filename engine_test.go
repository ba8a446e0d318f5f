package authkit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookbuddy/authkit/mailer"
)

type captureMailer struct {
	mu       sync.Mutex
	messages []mailer.Message
}

func (m *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *captureMailer) last() (mailer.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return mailer.Message{}, false
	}
	return m.messages[len(m.messages)-1], true
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) (*Engine, *captureMailer) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := defaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret")
	cfg.Password.Cost = bcrypt.MinCost
	for _, fn := range mutate {
		fn(&cfg)
	}

	mail := &captureMailer{}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithMailer(mail).
		Build()
	if err != nil {
		t.Fatalf("building engine failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, mail
}

func mustRegister(t *testing.T, e *Engine, username, email, password string) *AuthResult {
	t.Helper()

	result, err := e.Register(context.Background(), username, email, password)
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	return result
}

func TestRegister(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	result := mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")

	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("registration should log the user in with a token pair")
	}
	if result.User.PasswordHash != "" {
		t.Error("returned user record must be redacted")
	}
	if result.User.Username != "alice" {
		t.Errorf("expected username alice, got %q", result.User.Username)
	}

	userID, err := engine.ValidateAccess(ctx, result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("access token subject mismatch: %q vs %q", userID, result.User.ID)
	}
}

func TestRegisterConflicts(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")

	if _, err := engine.Register(ctx, "alice", "other@x.com", "Secret123!"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := engine.Register(ctx, "bob", "ALICE@x.com", "Secret123!"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		email    string
		password string
		field    string
	}{
		{"short username", "ab", "a@x.com", "Secret123!", "username"},
		{"bad username chars", "a b c", "a@x.com", "Secret123!", "username"},
		{"bad email", "alice", "not-an-email", "Secret123!", "email"},
		{"empty password", "alice", "a@x.com", "", "password"},
		{"short password", "alice", "a@x.com", "abc", "password"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Register(ctx, tc.username, tc.email, tc.password)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, ve.Field)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")

	if _, err := engine.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := engine.Login(ctx, "nobody", "Secret123!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}

	// Both identifier forms work.
	if _, err := engine.Login(ctx, "alice", "Secret123!"); err != nil {
		t.Errorf("login by username failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@x.com", "Secret123!"); err != nil {
		t.Errorf("login by email failed: %v", err)
	}
}

func TestLoginRevokesPriorSessions(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	first := mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")

	second, err := engine.Login(ctx, "alice", "Secret123!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, first.Tokens.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("pre-login refresh token should be dead, got %v", err)
	}
	if _, err := engine.Refresh(ctx, second.Tokens.RefreshToken); err != nil {
		t.Errorf("current refresh token should work, got %v", err)
	}
}

func TestLoginKeepsSessionsWhenPolicyDisabled(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Session.RevokePriorOnLogin = false
	})
	ctx := context.Background()

	first := mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")

	if _, err := engine.Login(ctx, "alice", "Secret123!"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, first.Tokens.RefreshToken); err != nil {
		t.Errorf("multi-device policy should keep the prior session alive, got %v", err)
	}
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	initial := mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")

	rotated, err := engine.Refresh(ctx, initial.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if rotated.Tokens.RefreshToken == initial.Tokens.RefreshToken {
		t.Fatal("rotation must issue a new refresh token")
	}

	// Replaying the consumed token must fail, the new one must work.
	if _, err := engine.Refresh(ctx, initial.Tokens.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("replayed refresh token: expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.Refresh(ctx, rotated.Tokens.RefreshToken); err != nil {
		t.Errorf("rotated refresh token failed: %v", err)
	}
}

func TestRefreshRejectsTamperedToken(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	result := mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")

	tampered := []byte(result.Tokens.RefreshToken)
	tampered[len(tampered)-1] ^= 0x01

	if _, err := engine.Refresh(ctx, string(tampered)); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("tampered token: expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.Refresh(ctx, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("missing token: expected ErrUnauthorized, got %v", err)
	}

	// The untouched token still rotates: no session was burned above.
	if _, err := engine.Refresh(ctx, result.Tokens.RefreshToken); err != nil {
		t.Errorf("legitimate refresh failed after tampered attempts: %v", err)
	}
}

func TestLogoutIsBestEffort(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	if err := engine.Logout(ctx, ""); err != nil {
		t.Errorf("logout without a token must succeed, got %v", err)
	}
	if err := engine.Logout(ctx, "garbage-token"); err != nil {
		t.Errorf("logout with an invalid token must succeed, got %v", err)
	}

	result := mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")
	if err := engine.Logout(ctx, result.Tokens.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, result.Tokens.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("refresh after logout: expected ErrUnauthorized, got %v", err)
	}
}

func TestLogoutAll(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Session.RevokePriorOnLogin = false
	})
	ctx := context.Background()

	first := mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")
	second, err := engine.Login(ctx, "alice", "Secret123!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.LogoutAll(ctx, first.User.ID); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}

	for i, tokens := range []TokenPair{first.Tokens, second.Tokens} {
		if _, err := engine.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("session %d survived LogoutAll: %v", i, err)
		}
	}
}

func TestValidateAccessRejectsRefreshToken(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	result := mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")

	if _, err := engine.ValidateAccess(ctx, result.Tokens.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("refresh token must not pass access validation, got %v", err)
	}
	if _, err := engine.ValidateAccess(ctx, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("empty token must not pass access validation, got %v", err)
	}
}

func TestAuditEventsEmitted(t *testing.T) {
	sink := NewChannelSink(32)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := defaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret")
	cfg.Password.Cost = bcrypt.MinCost

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithMailer(&captureMailer{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("building engine failed: %v", err)
	}

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")
	if _, err := engine.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	engine.Close()

	types := map[string]AuditEvent{}
	for {
		select {
		case event := <-sink.Events():
			types[event.EventType] = event
			continue
		default:
		}
		break
	}

	if _, ok := types[auditEventRegisterSuccess]; !ok {
		t.Error("expected a register success event")
	}
	failed, ok := types[auditEventLoginFailure]
	if !ok {
		t.Fatal("expected a login failure event")
	}
	if failed.IP != "203.0.113.9" {
		t.Errorf("expected caller IP on the event, got %q", failed.IP)
	}
	if failed.Success {
		t.Error("login failure event should not be marked successful")
	}
}

func TestMetricsCount(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	mustRegister(t, engine, "alice", "alice@x.com", "Secret123!")
	if _, err := engine.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRegisterSuccess] != 1 {
		t.Errorf("expected 1 register success, got %d", snap.Counters[MetricRegisterSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Errorf("expected 1 login failure, got %d", snap.Counters[MetricLoginFailure])
	}
}
