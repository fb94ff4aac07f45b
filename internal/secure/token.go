package secure

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

const (
	nonceBytes = 16
	tokenBytes = 32
)

// NewNonce returns a fresh 16-byte random nonce, base64-encoded, used to
// bind inline content to a single response via the CSP.
func NewNonce() (string, error) {
	return randomString(nonceBytes)
}

// NewToken returns a 32-byte random value suitable as a session id or
// CSRF token (≥128 bits of entropy, URL-safe).
func NewToken() (string, error) {
	return randomString(tokenBytes)
}

// TokensEqual compares two tokens without short-circuiting.
func TokensEqual(a, b string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
