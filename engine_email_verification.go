package authkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookbuddy/authkit/mailer"
	"github.com/bookbuddy/authkit/user"
)

// RequestEmailVerification issues a single-use verification token for the
// user and emails it as a link. Already-verified accounts are a no-op
// success.
func (e *Engine) RequestEmailVerification(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	rec, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if rec.EmailVerified {
		return nil
	}

	secret, err := e.tokens.issue(ctx, purposeEmailVerify, rec.ID, e.config.Tokens.VerifyTTL)
	if err != nil {
		return err
	}

	link := e.config.Links.VerifyEmailBase + "?token=" + secret
	err = e.sendMail(ctx, mailer.Message{
		To:      rec.Email,
		Subject: "Verify your BookBuddy email",
		Text:    "Welcome to BookBuddy! Verify your email by opening this link: " + link + "\nThe link expires in 24 hours.",
		HTML:    `<p>Welcome to BookBuddy!</p><p><a href="` + link + `">Verify your email</a></p><p>The link expires in 24 hours.</p>`,
	})
	if err != nil {
		return err
	}

	e.metricInc(MetricEmailVerifyRequest)
	e.emitAudit(ctx, auditEventVerifyRequested, true, rec.ID, "", nil, nil)

	return nil
}

// VerifyEmail consumes a verification token and marks the owning account's
// email verified. The token is dead afterward; any other unused
// verification tokens for the user are purged as well.
func (e *Engine) VerifyEmail(ctx context.Context, secret string) error {
	if err := e.ready(); err != nil {
		return err
	}

	userID, err := e.tokens.consume(ctx, purposeEmailVerify, secret)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenExpired) {
			e.metricInc(MetricEmailVerifyFailure)
			e.emitAudit(ctx, auditEventVerifyFailure, false, "", "", err, nil)
		}
		return err
	}

	if err := e.users.MarkEmailVerified(ctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.tokens.invalidate(ctx, purposeEmailVerify, userID); err != nil {
		return err
	}

	e.metricInc(MetricEmailVerifySuccess)
	e.recordHistory(ctx, userID, historyActionEmailVerified)
	e.emitAudit(ctx, auditEventVerifySuccess, true, userID, "", nil, nil)

	return nil
}
