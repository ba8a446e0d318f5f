package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid is returned for any token that fails signature, issuer,
// audience, or structural checks. Callers must treat it as a hard failure.
var ErrInvalid = errors.New("invalid token")

// ErrExpired is returned for a structurally valid, correctly signed token
// whose lifetime has passed. Callers may react to it differently from
// ErrInvalid (an expired access token triggers a silent refresh; an expired
// refresh token forces re-login).
var ErrExpired = errors.New("token expired")

// Config holds the signing material and claim constants for both token
// kinds. Access and refresh secrets are distinct so possession of one
// cannot forge the other.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// AccessClaims is the access-token claim set. The subject carries the user
// ID; validity is determined purely by signature, issuer/audience, and
// expiry — no store lookup.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh-token claim set: subject plus the session
// identifier correlating the token to its ledger entry.
type RefreshClaims struct {
	JTI string `json:"jti"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access and refresh tokens. Instances are
// immutable and safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// SignAccess returns a signed access token for the user.
func (m *Manager) SignAccess(userID string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: m.registered(userID, now, m.config.AccessTTL),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.AccessSecret)
}

// SignRefresh returns a signed refresh token carrying the session
// identifier jti.
func (m *Manager) SignRefresh(userID, jti string) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		JTI:              jti,
		RegisteredClaims: m.registered(userID, now, m.config.RefreshTTL),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.RefreshSecret)
}

// ParseAccess verifies an access token and returns the subject user ID.
func (m *Manager) ParseAccess(tokenStr string) (string, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, m.config.AccessSecret); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}

// ParseRefresh verifies a refresh token and returns the subject user ID and
// session identifier.
func (m *Manager) ParseRefresh(tokenStr string) (userID, jti string, err error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, m.config.RefreshSecret); err != nil {
		return "", "", err
	}
	if claims.Subject == "" || claims.JTI == "" {
		return "", "", ErrInvalid
	}
	return claims.Subject, claims.JTI, nil
}

func (m *Manager) registered(userID string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    m.config.Issuer,
		Audience:  jwt.ClaimStrings{m.config.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return ErrInvalid
	}
	if !parsed.Valid {
		return ErrInvalid
	}

	return nil
}
