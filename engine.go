package authkit

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bookbuddy/authkit/mailer"
	"github.com/bookbuddy/authkit/password"
	"github.com/bookbuddy/authkit/session"
	"github.com/bookbuddy/authkit/token"
	"github.com/bookbuddy/authkit/user"
)

// Engine orchestrates every authentication flow against the backing
// stores. Build one through the Builder; it is safe for concurrent use and
// immutable after construction.
type Engine struct {
	config    Config
	users     *user.Store
	sessions  *session.Store
	tokens    *singleUseStore
	codes     *codeStore
	history   *historyStore
	deletions *deletionStore
	codec     *token.Manager
	hasher    *password.Hasher
	mailer    mailer.Mailer
	purger    DataPurger
	audit     *auditDispatcher
	metrics   *Metrics
}

// Close drains the audit dispatcher. The engine must not be used after
// Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil || e.sessions == nil || e.codec == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	return nil
}

// issueSession creates a fresh ledger entry for the user and signs the
// matching access and refresh tokens.
func (e *Engine) issueSession(ctx context.Context, userID string) (TokenPair, string, error) {
	jti, err := e.sessions.Create(ctx, userID, e.config.Token.RefreshTTL)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	access, err := e.codec.SignAccess(userID)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	refresh, err := e.codec.SignRefresh(userID, jti)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSessionCreated)

	return TokenPair{AccessToken: access, RefreshToken: refresh}, jti, nil
}

func (e *Engine) sendMail(ctx context.Context, msg mailer.Message) error {
	if e.mailer == nil {
		return ErrMailUnavailable
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		log.Printf("authkit: mail delivery to %s failed: %v", msg.To, err)
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}
	return nil
}

// Login authenticates by email or username plus password and establishes a
// new session. The failure is ErrInvalidCredentials regardless of whether
// the account exists or the password was wrong.
func (e *Engine) Login(ctx context.Context, identifier, plainPassword string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if identifier == "" || plainPassword == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "missing_input"}
		})
		return nil, ErrInvalidCredentials
	}

	rec, err := e.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"identifier": identifier, "reason": "user_not_found"}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.hasher.Verify(plainPassword, rec.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "wrong_password"}
		})
		return nil, ErrInvalidCredentials
	}

	if e.config.Session.RevokePriorOnLogin {
		if err := e.sessions.RevokeAll(ctx, rec.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	pair, jti, err := e.issueSession(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.recordHistory(ctx, rec.ID, historyActionLogin)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.ID, jti, nil, nil)

	return &AuthResult{User: rec.Redacted(), Tokens: pair}, nil
}

// Refresh rotates a refresh token: the presented session is revoked and a
// brand-new one is issued atomically, so the old token can never be
// accepted again. Presenting an already-rotated token is treated as a
// replay signal.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if refreshToken == "" {
		e.metricInc(MetricRefreshDenied)
		e.emitAudit(ctx, auditEventRefreshDenied, false, "", "", ErrUnauthorized, func() map[string]string {
			return map[string]string{"reason": "missing_token"}
		})
		return nil, ErrUnauthorized
	}

	claimUserID, jti, err := e.codec.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshDenied)
		e.emitAudit(ctx, auditEventRefreshDenied, false, "", "", err, func() map[string]string {
			reason := "invalid_token"
			if errors.Is(err, token.ErrExpired) {
				reason = "expired_token"
			}
			return map[string]string{"reason": reason}
		})
		return nil, ErrUnauthorized
	}

	ownerID, err := e.sessions.ConsumeForRotation(ctx, jti)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRevoked):
			// A revoked jti arriving with a valid signature usually means
			// a stolen or rotated-away token is being replayed.
			log.Printf("authkit: refresh presented for revoked session %s", jti)
			e.metricInc(MetricRefreshDenied)
			e.emitAudit(ctx, auditEventRefreshDenied, false, claimUserID, jti, ErrUnauthorized, func() map[string]string {
				return map[string]string{"reason": "session_revoked"}
			})
			e.emitAudit(ctx, auditEventRefreshReuse, false, claimUserID, jti, ErrUnauthorized, nil)
			return nil, ErrUnauthorized
		case errors.Is(err, session.ErrNotFound):
			e.metricInc(MetricRefreshDenied)
			e.emitAudit(ctx, auditEventRefreshDenied, false, claimUserID, jti, ErrUnauthorized, func() map[string]string {
				return map[string]string{"reason": "session_not_found"}
			})
			return nil, ErrUnauthorized
		default:
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if ownerID != claimUserID {
		e.metricInc(MetricRefreshDenied)
		e.emitAudit(ctx, auditEventRefreshDenied, false, claimUserID, jti, ErrUnauthorized, func() map[string]string {
			return map[string]string{"reason": "owner_mismatch"}
		})
		return nil, ErrUnauthorized
	}

	rec, err := e.users.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	pair, newJTI, err := e.issueSession(ctx, ownerID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricSessionRevoked)
	e.recordHistory(ctx, ownerID, historyActionRefresh)
	e.emitAudit(ctx, auditEventRefreshRotate, true, ownerID, newJTI, nil, func() map[string]string {
		return map[string]string{"rotated_from": jti}
	})

	return &AuthResult{User: rec.Redacted(), Tokens: pair}, nil
}

// Logout revokes the session behind the presented refresh token. It is
// best-effort: a missing or invalid token still returns nil, since logout
// must never fail visibly. The caller clears the cookie regardless.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	userID, jti, parseErr := e.codec.ParseRefresh(refreshToken)
	if parseErr == nil {
		if err := e.sessions.Revoke(ctx, jti); err != nil {
			log.Printf("authkit: revoking session on logout failed: %v", err)
		} else {
			e.metricInc(MetricSessionRevoked)
		}
		e.recordHistory(ctx, userID, historyActionLogout)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, jti, nil, nil)

	return nil
}

// LogoutAll revokes every active session for the user. The caller must
// have already authenticated the user via a valid access token.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if userID == "" {
		return ErrUnauthorized
	}

	if err := e.sessions.RevokeAll(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogoutAll)
	e.recordHistory(ctx, userID, historyActionLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, nil)

	return nil
}

// ValidateAccess verifies an access token and returns its subject user ID.
// Validation is stateless: signature, issuer/audience, and expiry only.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	userID, err := e.codec.ParseAccess(accessToken)
	if err != nil {
		return "", ErrUnauthorized
	}
	return userID, nil
}
