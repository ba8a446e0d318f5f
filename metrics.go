package authkit

import (
	internalmetrics "github.com/bookbuddy/authkit/internal/metrics"
)

// MetricID identifies one of the engine's in-process counters.
type MetricID = internalmetrics.MetricID

const (
	MetricRegisterSuccess      = internalmetrics.MetricRegisterSuccess
	MetricRegisterConflict     = internalmetrics.MetricRegisterConflict
	MetricLoginSuccess         = internalmetrics.MetricLoginSuccess
	MetricLoginFailure         = internalmetrics.MetricLoginFailure
	MetricRefreshSuccess       = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure       = internalmetrics.MetricRefreshFailure
	MetricRefreshDenied        = internalmetrics.MetricRefreshDenied
	MetricLogout               = internalmetrics.MetricLogout
	MetricLogoutAll            = internalmetrics.MetricLogoutAll
	MetricSessionCreated       = internalmetrics.MetricSessionCreated
	MetricSessionRevoked       = internalmetrics.MetricSessionRevoked
	MetricEmailVerifyRequest   = internalmetrics.MetricEmailVerifyRequest
	MetricEmailVerifySuccess   = internalmetrics.MetricEmailVerifySuccess
	MetricEmailVerifyFailure   = internalmetrics.MetricEmailVerifyFailure
	MetricPasswordResetRequest = internalmetrics.MetricPasswordResetRequest
	MetricPasswordResetSuccess = internalmetrics.MetricPasswordResetSuccess
	MetricPasswordResetFailure = internalmetrics.MetricPasswordResetFailure
	MetricEmailReminderRequest = internalmetrics.MetricEmailReminderRequest
	MetricLoginCodeSent        = internalmetrics.MetricLoginCodeSent
	MetricLoginCodeSuccess     = internalmetrics.MetricLoginCodeSuccess
	MetricLoginCodeFailure     = internalmetrics.MetricLoginCodeFailure
	MetricAccountDeleted       = internalmetrics.MetricAccountDeleted
)

// Metrics holds atomic counters for every engine outcome.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a Metrics instance. When cfg.Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled: cfg.Enabled,
	})
}
