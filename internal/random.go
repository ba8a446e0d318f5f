package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

const singleUseSecretSize = 32

// NewSingleUseSecret returns a fresh high-entropy secret encoded as lowercase
// hex. The plaintext is handed to the user out-of-band; only its digest is
// ever persisted.
func NewSingleUseSecret() (string, error) {
	var raw [singleUseSecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// HashSecret returns the hex-encoded SHA-256 digest of a plaintext secret.
// Store lookups key on this digest so a store compromise never yields a
// usable token.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// NewNumericCode returns a uniformly random decimal code of the given width.
// Leading zeros are allowed: each digit is drawn independently.
func NewNumericCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
