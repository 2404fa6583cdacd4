package idgen

import (
	"crypto/rand"
	"fmt"
)

const charset = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateSecureID generates a cryptographically secure ID with the given prefix and length.
// Only lowercase alphanumerics are used, so IDs sort and compare as plain strings.
func GenerateSecureID(prefix string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid id length %d", length)
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := make([]byte, length)
	for i, b := range bytes {
		encoded[i] = charset[int(b)%len(charset)]
	}

	if prefix == "" {
		return string(encoded), nil
	}
	return fmt.Sprintf("%s_%s", prefix, string(encoded)), nil
}

// ConversationID returns a new conversation identifier.
func ConversationID() (string, error) {
	return GenerateSecureID("conv", 24)
}

// MessageID returns a new message identifier.
func MessageID() (string, error) {
	return GenerateSecureID("msg", 24)
}

// ConnectionID returns a new realtime connection identifier.
func ConnectionID() (string, error) {
	return GenerateSecureID("conn", 16)
}
