package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const resetTokenSize = 32

// NewResetToken returns 32 random bytes, hex-encoded.
func NewResetToken() (string, error) {
	var raw [resetTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// HashToken is the at-rest form of refresh and reset tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewTokenID returns a time-ordered row ID for token tables.
func NewTokenID() string {
	return ulid.Make().String()
}

// NewJTI returns a random refresh token identifier.
func NewJTI() string {
	return uuid.NewString()
}

// NewUserID returns a random user ID.
func NewUserID() string {
	return uuid.NewString()
}
