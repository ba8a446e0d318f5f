package authkit

import "errors"

var (
	// ErrUsernameTaken is returned by Register when the username is already
	// in use, case-insensitively.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken is returned by Register when the email is already
	// registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrDeletionPending is returned by RequestAccountDeletion when a
	// pending request already exists for the user.
	ErrDeletionPending = errors.New("account deletion already requested")
	// ErrInvalidCredentials is returned on login failure. The message is
	// identical whether the account does not exist or the password is
	// wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized covers every missing/invalid/expired access or
	// refresh token outcome, including a refresh jti that is unknown or
	// already revoked.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenInvalid is returned for a single-use token that is unknown,
	// already consumed, or malformed. It never reveals which.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for a single-use token that was found but
	// has passed its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrCodeInvalid is returned for a one-time code that does not match,
	// was already used, or has expired. The error is uniform across all
	// three cases.
	ErrCodeInvalid = errors.New("invalid or expired code")
	// ErrUserNotFound is returned by operations referencing a user id that
	// no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned when the engine is used before Build
	// or after Close.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable wraps backend failures the engine cannot classify
	// further. The underlying detail is logged server-side, never exposed.
	ErrStoreUnavailable = errors.New("backend unavailable")
	// ErrMailUnavailable is returned when an outbound email could not be
	// handed to the mailer.
	ErrMailUnavailable = errors.New("mail delivery unavailable")
)

// ValidationError reports malformed input caught before any store
// operation. Field-level messages are safe to expose to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func validationErr(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
