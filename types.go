package authkit

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/bookbuddy/authkit/internal/audit"
	"github.com/bookbuddy/authkit/user"
)

// TokenPair carries a freshly issued access and refresh token. The refresh
// token belongs in the httpOnly refresh cookie; the access token goes to
// the client body.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by the operations that establish a session:
// Register, Login, Refresh, and VerifyLoginCode. User is already redacted.
type AuthResult struct {
	User   *user.Record
	Tokens TokenPair
}

// HistoryEntry is one recorded authentication event for a user, newest
// first in AuthHistory results.
type HistoryEntry struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// DeletionStatus is the lifecycle state of an account-deletion request.
type DeletionStatus string

const (
	// DeletionPending marks a recorded request whose cascade has not
	// completed.
	DeletionPending DeletionStatus = "pending"
	// DeletionProcessed marks a request whose cascade completed and whose
	// user record is gone.
	DeletionProcessed DeletionStatus = "processed"
)

// DataPurger removes a user's owned data living outside this module, such
// as saved book lists, during account deletion. Implementations must be
// idempotent; the engine calls it exactly once per deletion and propagates
// its failure before touching auth state.
type DataPurger interface {
	PurgeUserData(ctx context.Context, userID string) error
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an AuditSink that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an AuditSink that writes one JSON object per line to an
// io.Writer.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
