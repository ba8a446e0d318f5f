package authkit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bookbuddy/authkit/password"
	"github.com/bookbuddy/authkit/user"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

func validateRegistration(username, email, plainPassword string) error {
	if !usernamePattern.MatchString(username) {
		return validationErr("username", "must be 3-20 characters of letters, digits, or underscore")
	}
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return validationErr("email", "must be a valid email address")
	}
	if plainPassword == "" {
		return validationErr("password", "must not be empty")
	}
	return nil
}

// Register creates a new account and immediately logs it in: the result
// carries a fresh access and refresh token pair alongside the redacted
// user record.
func (e *Engine) Register(ctx context.Context, username, email, plainPassword string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validateRegistration(username, email, plainPassword); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(plainPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordPolicy) {
			return nil, validationErr("password", "must be between 6 and 72 characters")
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec, err := e.users.Create(ctx, strings.ToLower(username), email, hash)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUsernameTaken):
			e.metricInc(MetricRegisterConflict)
			e.emitAudit(ctx, auditEventRegisterConflict, false, "", "", ErrUsernameTaken, func() map[string]string {
				return map[string]string{"field": "username"}
			})
			return nil, ErrUsernameTaken
		case errors.Is(err, user.ErrEmailTaken):
			e.metricInc(MetricRegisterConflict)
			e.emitAudit(ctx, auditEventRegisterConflict, false, "", "", ErrEmailTaken, func() map[string]string {
				return map[string]string{"field": "email"}
			})
			return nil, ErrEmailTaken
		default:
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	pair, jti, err := e.issueSession(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.recordHistory(ctx, rec.ID, historyActionRegister)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, rec.ID, jti, nil, func() map[string]string {
		return map[string]string{"username": rec.Username}
	})

	return &AuthResult{User: rec.Redacted(), Tokens: pair}, nil
}
