package authkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookbuddy/authkit/user"
)

// GetMe returns the redacted account record for a user ID, typically taken
// from a validated access token. A user deleted mid-session yields
// ErrUserNotFound.
func (e *Engine) GetMe(ctx context.Context, userID string) (*user.Record, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	rec, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rec.Redacted(), nil
}

// AuthHistory returns the user's recent authentication events, newest
// first. limit <= 0 returns everything retained.
func (e *Engine) AuthHistory(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.history == nil {
		return nil, ErrEngineNotReady
	}
	return e.history.list(ctx, userID, limit)
}

// RequestAccountDeletion records a deletion request and immediately
// processes it: the user's external data is purged first through the
// DataPurger, then every piece of auth state, and finally the account
// itself. There is no grace period. A second request while one is pending
// fails with ErrDeletionPending.
func (e *Engine) RequestAccountDeletion(ctx context.Context, userID, reason string) error {
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

	if err := e.deletions.createPending(ctx, userID, reason); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventDeleteRequested, true, userID, "", nil, func() map[string]string {
		return map[string]string{"reason": reason}
	})

	// External data first: if the purger fails, the request stays pending
	// and auth state stays intact, so the user can still authenticate and
	// support can retry.
	if e.purger != nil {
		if err := e.purger.PurgeUserData(ctx, userID); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if err := e.sessions.PurgeAll(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.tokens.invalidateAll(ctx, userID); err != nil {
		return err
	}
	if err := e.codes.purge(ctx, rec.Email, codePurposeLogin); err != nil {
		return err
	}
	if err := e.history.purge(ctx, userID); err != nil {
		return err
	}
	if err := e.users.Delete(ctx, userID); err != nil && !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.deletions.markProcessed(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventDeleteProcessed, true, userID, "", nil, nil)

	return nil
}

// DeletionStatusFor reports the state of a user's deletion request, or ""
// when none exists.
func (e *Engine) DeletionStatusFor(ctx context.Context, userID string) (DeletionStatus, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	return e.deletions.status(ctx, userID)
}
