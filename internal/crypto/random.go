package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateSecureToken creates a cryptographically secure random token.
// Returns a base64 URL-encoded string suitable for session IDs and nonces.
func GenerateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MustGenerateSecureToken is like GenerateSecureToken but panics on error
func MustGenerateSecureToken() string {
	token, err := GenerateSecureToken()
	if err != nil {
		panic(err)
	}
	return token
}
