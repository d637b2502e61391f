package authcore_test

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/argon2"

	"github.com/workhub/authcore/password"
)

func hashPassword(pw string) (string, error) {
	a, err := password.New(4)
	if err != nil {
		return "", err
	}
	return a.Hash(pw)
}

// legacyArgon2Hash builds a PHC argon2id hash like the ones imported from
// earlier deployments.
func legacyArgon2Hash(t *testing.T, pw string) string {
	t.Helper()
	salt := bytes.Repeat([]byte("s"), 16)
	key := argon2.IDKey([]byte(pw), salt, 1, 8*1024, 1, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, 8*1024, 1, 1,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// legacyEnvelope seals secret in the three-field format keyed by the
// historical fixed salt, using the same master key and KDF parameters as
// engineTestConfig.
func legacyEnvelope(t *testing.T, secret string) string {
	t.Helper()
	cfg := engineTestConfig()
	key := argon2.IDKey(cfg.Vault.MasterKey, []byte("workhub.mfa.secret.v1"),
		cfg.Vault.KDFTime, cfg.Vault.KDFMemoryKB, cfg.Vault.KDFThreads, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes: %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("gcm: %v", err)
	}
	iv := bytes.Repeat([]byte{7}, aead.NonceSize())
	sealed := aead.Seal(nil, iv, []byte(secret), nil)
	split := len(sealed) - aead.Overhead()

	enc := base64.StdEncoding.EncodeToString
	return strings.Join([]string{enc(iv), enc(sealed[split:]), enc(sealed[:split])}, ":")
}
