package authkit

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// NewNonce generates a single-use nonce for Apple sign-in. The hashed value goes to
// the native prompt; the raw value goes to the identity provider, which checks one
// against the other.
func NewNonce() (raw, hashed string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	raw = hex.EncodeToString(b)
	return raw, HashNonce(raw), nil
}

// HashNonce returns the lowercase hex SHA-256 of a raw nonce.
func HashNonce(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
