package password

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the production bcrypt work factor.
const DefaultCost = 12

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// Authenticator hashes new passwords with bcrypt and verifies both bcrypt and
// legacy argon2id hashes. It holds no mutable state and is safe for
// concurrent use.
type Authenticator struct {
	cost int
}

// New returns an Authenticator that hashes with the given bcrypt cost.
func New(cost int) (*Authenticator, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Authenticator{cost: cost}, nil
}

// Cost returns the configured bcrypt cost.
func (a *Authenticator) Cost() int {
	return a.cost
}

// Hash returns a salted bcrypt hash. Two calls with the same input never
// return the same string.
func (a *Authenticator) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", bcrypt.ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches encoded. Unknown or malformed
// hashes return false.
func (a *Authenticator) Verify(password, encoded string) bool {
	switch {
	case isBcrypt(encoded):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	case isArgon2(encoded):
		ok, err := verifyArgon2(password, encoded)
		return err == nil && ok
	default:
		return false
	}
}

// NeedsRehash reports whether encoded was produced by a legacy algorithm or
// with a lower cost than the one configured.
func (a *Authenticator) NeedsRehash(encoded string) bool {
	if isArgon2(encoded) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false
	}
	return cost < a.cost
}

func isBcrypt(encoded string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, prefix) {
			return true
		}
	}
	return false
}
