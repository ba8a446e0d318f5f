package authkit

import (
	"context"
	"log"
	"time"
)

const (
	auditEventRegisterSuccess   = "auth.register.success"
	auditEventRegisterConflict  = "auth.register.conflict"
	auditEventLoginSuccess      = "auth.login.success"
	auditEventLoginFailure      = "auth.login.failed"
	auditEventRefreshRotate     = "auth.refresh.rotate"
	auditEventRefreshDenied     = "auth.refresh.denied"
	auditEventRefreshReuse      = "auth.refresh.reuse"
	auditEventLogout            = "auth.logout"
	auditEventLogoutAll         = "auth.logout_all"
	auditEventVerifyRequested   = "email.verify.requested"
	auditEventVerifySuccess     = "email.verify.success"
	auditEventVerifyFailure     = "email.verify.failed"
	auditEventReminderRequested = "email.reminder.requested"
	auditEventResetRequested    = "password.reset.requested"
	auditEventResetSuccess      = "password.reset.success"
	auditEventResetFailure      = "password.reset.failed"
	auditEventLoginCodeSent     = "auth.code.sent"
	auditEventLoginCodeSuccess  = "auth.code.success"
	auditEventLoginCodeFailure  = "auth.code.failed"
	auditEventDeleteRequested   = "account.delete.requested"
	auditEventDeleteProcessed   = "account.delete.processed"
)

const (
	historyActionRegister      = "register"
	historyActionLogin         = "login"
	historyActionRefresh       = "refresh"
	historyActionLogout        = "logout"
	historyActionLogoutAll     = "logout_all"
	historyActionEmailVerified = "email_verified"
	historyActionPasswordReset = "password_reset"
	historyActionCodeLogin     = "code_login"
)

// emitAudit queues one audit event. Metadata is built lazily so disabled
// audit costs nothing per request.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, sessionID string, err error, metaFn func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		RequestID: requestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if metaFn != nil {
		event.Metadata = metaFn()
	}

	e.audit.Emit(ctx, event)
}

// recordHistory appends an auth-history entry. History is informational, so
// a store failure is logged and swallowed rather than failing the
// operation that triggered it.
func (e *Engine) recordHistory(ctx context.Context, userID, action string) {
	if e == nil || e.history == nil {
		return
	}

	entry := HistoryEntry{
		Action:    action,
		Timestamp: time.Now(),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	}
	if err := e.history.record(ctx, userID, entry); err != nil {
		log.Printf("authkit: recording auth history failed: %v", err)
	}
}
