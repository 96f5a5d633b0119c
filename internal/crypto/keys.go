package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key derivation contexts. Each purpose gets an independent key so that the
// same configured secret never signs and encrypts with identical material.
const (
	PurposeTokenEncryption = "yt-front token encryption v1"
	PurposeOAuthState      = "yt-front oauth state v1"
)

// DeriveKey expands secret into a 32-byte key bound to purpose using HKDF-SHA256
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}
