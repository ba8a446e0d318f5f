package authkit

import (
	"errors"
	"time"
)

// Config is the single source of configuration for an Engine. Populate it
// once, pass it to the Builder, and treat it as immutable afterward. There
// are no ambient environment lookups inside the engine; env parsing belongs
// to the caller.
type Config struct {
	// RedisPrefix namespaces every key this module writes.
	RedisPrefix string

	Token    TokenConfig
	Session  SessionConfig
	Password PasswordConfig
	Tokens   SingleUseConfig
	Codes    CodeConfig
	History  HistoryConfig
	Links    LinksConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig holds the JWT signing material and claim constants. Access
// and refresh secrets must differ.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes the refresh-session ledger.
type SessionConfig struct {
	// RevokePriorOnLogin revokes all existing sessions on every successful
	// password or code login, so a user holds one live session chain at a
	// time. Disable it to allow concurrent multi-device logins; explicit
	// LogoutAll still works either way.
	RevokePriorOnLogin bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig tunes bcrypt hashing.
type PasswordConfig struct {
	Cost int
}

/*
====================================
SINGLE-USE TOKEN CONFIG
====================================
*/

// SingleUseConfig tunes the email-verification and password-reset tokens.
type SingleUseConfig struct {
	VerifyTTL time.Duration
	ResetTTL  time.Duration
	// ExpiredRetention keeps consumed-but-expired records around past
	// their expiry so a late confirm can still be answered with an
	// expiry error instead of a generic invalid one.
	ExpiredRetention time.Duration
}

/*
====================================
LOGIN CODE CONFIG
====================================
*/

// CodeConfig tunes the one-time login-verification codes.
type CodeConfig struct {
	TTL    time.Duration
	Digits int
}

/*
====================================
HISTORY CONFIG
====================================
*/

// HistoryConfig tunes the per-user auth-history ledger.
type HistoryConfig struct {
	MaxEntries int
	Retention  time.Duration
}

/*
====================================
EMAIL LINK CONFIG
====================================
*/

// LinksConfig holds the base URLs embedded in outbound emails. The token
// is appended as a "token" query parameter.
type LinksConfig struct {
	VerifyEmailBase   string
	ResetPasswordBase string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig tunes the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking request handling when
	// the buffer is full. The drop count stays observable via
	// Engine.AuditDropped.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		RedisPrefix: "bb",
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "bookbuddy-api",
			Audience:   "bookbuddy-client",
		},
		Session: SessionConfig{
			RevokePriorOnLogin: true,
		},
		Password: PasswordConfig{
			Cost: 12,
		},
		Tokens: SingleUseConfig{
			VerifyTTL:        24 * time.Hour,
			ResetTTL:         30 * time.Minute,
			ExpiredRetention: 24 * time.Hour,
		},
		Codes: CodeConfig{
			TTL:    10 * time.Minute,
			Digits: 6,
		},
		History: HistoryConfig{
			MaxEntries: 100,
			Retention:  30 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = cloneBytes(cfg.Token.AccessSecret)
	out.Token.RefreshSecret = cloneBytes(cfg.Token.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for internal consistency. Builder.Build
// calls it; callers constructing a Config by hand may call it early.
func (c Config) Validate() error {
	if c.RedisPrefix == "" {
		return errors.New("RedisPrefix must not be empty")
	}

	if len(c.Token.AccessSecret) == 0 || len(c.Token.RefreshSecret) == 0 {
		return errors.New("Token access and refresh secrets are required")
	}
	if string(c.Token.AccessSecret) == string(c.Token.RefreshSecret) {
		return errors.New("Token access and refresh secrets must differ")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("Token TTLs must be positive")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("Token AccessTTL must be shorter than RefreshTTL")
	}
	if c.Token.Issuer == "" || c.Token.Audience == "" {
		return errors.New("Token issuer and audience are required")
	}

	if c.Tokens.VerifyTTL <= 0 || c.Tokens.ResetTTL <= 0 {
		return errors.New("single-use token TTLs must be positive")
	}
	if c.Tokens.ExpiredRetention < 0 {
		return errors.New("single-use ExpiredRetention must not be negative")
	}

	if c.Codes.TTL <= 0 {
		return errors.New("Codes TTL must be positive")
	}
	if c.Codes.Digits < 4 || c.Codes.Digits > 10 {
		return errors.New("Codes Digits must be between 4 and 10")
	}

	if c.History.MaxEntries <= 0 {
		return errors.New("History MaxEntries must be positive")
	}
	if c.History.Retention <= 0 {
		return errors.New("History Retention must be positive")
	}

	return nil
}
