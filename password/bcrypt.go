package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the production cost factor. Registration and reset
	// both pay the full hashing price; lowering it is a test-only concern.
	DefaultCost = 12

	minPasswordLength = 6
	maxPasswordLength = 72 // bcrypt input limit
)

// ErrPasswordPolicy is returned when a candidate password violates the
// length policy before any hashing takes place.
var ErrPasswordPolicy = errors.New("password policy violation")

// Config holds bcrypt tuning parameters.
type Config struct {
	Cost int
}

// Hasher hashes and verifies passwords with bcrypt. Instances are immutable
// and safe for concurrent use; hashing is CPU-bound and runs independently
// per calling goroutine.
type Hasher struct {
	cost int
}

// NewHasher validates cfg and returns a Hasher. A zero cost falls back to
// DefaultCost.
func NewHasher(cfg Config) (*Hasher, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Hasher{cost: cost}, nil
}

// Hash returns the salted bcrypt hash of plain. The plaintext is never
// retained.
func (h *Hasher) Hash(plain string) (string, error) {
	if len(plain) < minPasswordLength || len(plain) > maxPasswordLength {
		return "", ErrPasswordPolicy
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches the stored hash. A malformed stored
// hash is reported as an error, not a mismatch.
func (h *Hasher) Verify(plain, hashed string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
