package password

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$argon2id$"

// Upper bounds keep a crafted hash from forcing huge allocations.
const (
	maxArgon2MemoryKB = 1 << 20
	maxArgon2Time     = 16
	minArgon2SaltLen  = 16
)

var errMalformedArgon2 = errors.New("malformed argon2id hash")

type argon2Hash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func isArgon2(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Prefix)
}

func verifyArgon2(password, encoded string) (bool, error) {
	h, err := parseArgon2(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.threads, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(computed, h.key) == 1, nil
}

func parseArgon2(encoded string) (*argon2Hash, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, errMalformedArgon2
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version", errMalformedArgon2)
	}

	h := &argon2Hash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return nil, fmt.Errorf("%w: parameters", errMalformedArgon2)
	}
	if h.memory == 0 || h.memory > maxArgon2MemoryKB || h.time == 0 || h.time > maxArgon2Time || h.threads == 0 {
		return nil, fmt.Errorf("%w: parameters out of range", errMalformedArgon2)
	}

	var err error
	if h.salt, err = decodePHCBase64(parts[4]); err != nil || len(h.salt) < minArgon2SaltLen {
		return nil, fmt.Errorf("%w: salt", errMalformedArgon2)
	}
	if h.key, err = decodePHCBase64(parts[5]); err != nil || len(h.key) == 0 {
		return nil, fmt.Errorf("%w: key", errMalformedArgon2)
	}
	return h, nil
}

// decodePHCBase64 accepts both the padded form written by older releases and
// the unpadded form from the PHC string format.
func decodePHCBase64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
