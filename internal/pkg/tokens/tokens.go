// Package tokens generates opaque secrets and their storage digests for the
// single-use recovery flows and refresh-session tracking.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// DefaultSecretBytes matches the entropy of the legacy API tokens.
const DefaultSecretBytes = 32

// GenerateSecret returns a hex-encoded secret of byteLen random bytes from
// the crypto random source.
func GenerateSecret(byteLen int) (string, error) {
	if byteLen <= 0 {
		byteLen = DefaultSecretBytes
	}
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Digest returns the SHA-256 hex digest of a secret. Deterministic, so a
// presented secret can be re-digested and matched against the stored value.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Equal compares two digests in constant time.
func Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
