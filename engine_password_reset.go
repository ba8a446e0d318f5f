package authkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookbuddy/authkit/mailer"
	"github.com/bookbuddy/authkit/password"
	"github.com/bookbuddy/authkit/user"
)

// RequestPasswordReset issues a reset token and emails a reset link.
// The outcome is identical whether or not the email is registered; only
// the audit trail records the distinction.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if email == "" {
		return validationErr("email", "must not be empty")
	}

	rec, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			e.metricInc(MetricPasswordResetRequest)
			e.emitAudit(ctx, auditEventResetRequested, true, "", "", nil, func() map[string]string {
				return map[string]string{"known_account": "false"}
			})
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	secret, err := e.tokens.issue(ctx, purposePasswordReset, rec.ID, e.config.Tokens.ResetTTL)
	if err != nil {
		return err
	}

	link := e.config.Links.ResetPasswordBase + "?token=" + secret
	err = e.sendMail(ctx, mailer.Message{
		To:      rec.Email,
		Subject: "Reset your BookBuddy password",
		Text:    "A password reset was requested for your BookBuddy account. Open this link to choose a new password: " + link + "\nThe link expires in 30 minutes. If you did not request this, ignore this email.",
		HTML:    `<p>A password reset was requested for your BookBuddy account.</p><p><a href="` + link + `">Choose a new password</a></p><p>The link expires in 30 minutes. If you did not request this, ignore this email.</p>`,
	})
	if err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventResetRequested, true, rec.ID, "", nil, func() map[string]string {
		return map[string]string{"known_account": "true"}
	})

	return nil
}

// ResetPassword consumes a reset token, stores the new password, and
// revokes every refresh session for the user so any stolen session dies
// with the old password.
func (e *Engine) ResetPassword(ctx context.Context, secret, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if newPassword == "" {
		return validationErr("password", "must not be empty")
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordPolicy) {
			return validationErr("password", "must be between 6 and 72 characters")
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	userID, err := e.tokens.consume(ctx, purposePasswordReset, secret)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenExpired) {
			e.metricInc(MetricPasswordResetFailure)
			e.emitAudit(ctx, auditEventResetFailure, false, "", "", err, nil)
		}
		return err
	}

	if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.sessions.RevokeAll(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.recordHistory(ctx, userID, historyActionPasswordReset)
	e.emitAudit(ctx, auditEventResetSuccess, true, userID, "", nil, nil)

	return nil
}

// RequestEmailReminder emails the account's address to a user who forgot
// which email they registered their username under. Same anti-enumeration
// posture as password reset: the outcome never reveals whether the
// username exists.
func (e *Engine) RequestEmailReminder(ctx context.Context, username string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if username == "" {
		return validationErr("username", "must not be empty")
	}

	rec, err := e.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			e.metricInc(MetricEmailReminderRequest)
			e.emitAudit(ctx, auditEventReminderRequested, true, "", "", nil, func() map[string]string {
				return map[string]string{"known_account": "false"}
			})
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	err = e.sendMail(ctx, mailer.Message{
		To:      rec.Email,
		Subject: "Your BookBuddy account email",
		Text:    "You asked for a reminder: the BookBuddy account " + rec.Username + " is registered to this email address.",
	})
	if err != nil {
		return err
	}

	e.metricInc(MetricEmailReminderRequest)
	e.emitAudit(ctx, auditEventReminderRequested, true, rec.ID, "", nil, func() map[string]string {
		return map[string]string{"known_account": "true"}
	})

	return nil
}
