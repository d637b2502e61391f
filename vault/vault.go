package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	keySize   = 32
	saltSize  = 16
	nonceSize = 12
	tagSize   = 16

	// MinMasterKeyLen is the shortest accepted master key.
	MinMasterKeyLen = 32
)

var (
	// ErrEmptySecret is returned when encrypting an empty plaintext.
	ErrEmptySecret = errors.New("secret must not be empty")
	// ErrDecrypt is returned when the authentication tag does not verify.
	ErrDecrypt = errors.New("secret envelope failed authentication")
)

// KDFParams tunes the argon2id derivation of per-secret keys.
type KDFParams struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// DefaultKDFParams are the production derivation parameters.
var DefaultKDFParams = KDFParams{Time: 1, MemoryKB: 64 * 1024, Threads: 4}

// Vault seals and opens TOTP secrets. It is safe for concurrent use.
type Vault struct {
	master []byte
	kdf    KDFParams
}

// New returns a Vault keyed by masterKey.
func New(masterKey []byte, kdf KDFParams) (*Vault, error) {
	if len(masterKey) < MinMasterKeyLen {
		return nil, fmt.Errorf("vault master key must be at least %d bytes", MinMasterKeyLen)
	}
	if kdf.Time < 1 || kdf.MemoryKB < 1024 || kdf.Threads < 1 {
		return nil, errors.New("vault KDF parameters out of range")
	}
	master := make([]byte, len(masterKey))
	copy(master, masterKey)
	return &Vault{master: master, kdf: kdf}, nil
}

// Encrypt seals plain into a current-format envelope.
func (v *Vault) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptySecret
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	iv := make([]byte, nonceSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	aead, err := newGCM(v.deriveKey(salt))
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nil, iv, []byte(plain), nil)
	split := len(sealed) - tagSize

	return Envelope{
		Format:     FormatCurrent,
		Salt:       salt,
		IV:         iv,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}.String(), nil
}

// Decrypt opens an envelope in either format.
func (v *Vault) Decrypt(envelope string) (string, error) {
	env, err := ParseEnvelope(envelope)
	if err != nil {
		return "", err
	}

	var key []byte
	switch env.Format {
	case FormatCurrent:
		key = v.deriveKey(env.Salt)
	case FormatLegacy:
		key = v.legacyKey()
	default:
		return "", ErrMalformedEnvelope
	}

	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}
	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plain, err := aead.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// NeedsReencrypt reports whether envelope should be rewritten in the current
// format. Unparseable input returns false.
func NeedsReencrypt(envelope string) bool {
	env, err := ParseEnvelope(envelope)
	return err == nil && env.Format != FormatCurrent
}

func (v *Vault) deriveKey(salt []byte) []byte {
	return argon2.IDKey(v.master, salt, v.kdf.Time, v.kdf.MemoryKB, v.kdf.Threads, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
