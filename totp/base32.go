package totp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSecret is returned when a secret is not valid base32.
var ErrInvalidSecret = errors.New("invalid base32 secret")

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeSecret returns raw as unpadded upper-case base32.
func EncodeSecret(raw []byte) string {
	return secretEncoding.EncodeToString(raw)
}

// DecodeSecret parses a base32 secret. It ignores case, spaces, dashes and
// trailing padding, since users retype secrets from authenticator apps.
func DecodeSecret(secret string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, secret)
	cleaned = strings.TrimRight(strings.ToUpper(cleaned), "=")
	if cleaned == "" {
		return nil, ErrInvalidSecret
	}

	raw, err := secretEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return raw, nil
}
