package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	otptotp "github.com/pquerna/otp/totp"
)

const (
	// Digits is the length of every generated code.
	Digits = 6
	// Period is the length of one time step.
	Period = 30 * time.Second
	// Skew is the number of adjacent steps accepted on each side.
	Skew = 1
	// SecretSize is the number of random bytes in a new secret.
	SecretSize = 20
)

const codeModulus = 1_000_000

// GenerateSecret returns a new random secret encoded for enrollment.
func GenerateSecret() (string, error) {
	raw := make([]byte, SecretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return EncodeSecret(raw), nil
}

// Generate returns the code for the time step containing t.
func Generate(secret string, t time.Time) (string, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return "", err
	}
	return hotp(key, counterAt(t)), nil
}

// Verify reports whether code matches secret at t or one step either side.
// Input that is not exactly Digits decimal digits is rejected before any
// HMAC is computed.
func Verify(secret, code string, t time.Time) bool {
	code = strings.TrimSpace(code)
	if !wellFormed(code) {
		return false
	}
	key, err := DecodeSecret(secret)
	if err != nil || len(key) == 0 {
		return false
	}

	base := counterAt(t)
	matched := 0
	for step := int64(-Skew); step <= Skew; step++ {
		counter := base + step
		if counter < 0 {
			continue
		}
		matched |= subtle.ConstantTimeCompare([]byte(hotp(key, counter)), []byte(code))
	}
	return matched == 1
}

// ProvisionURL returns the otpauth:// URL that authenticator apps scan during
// enrollment.
func ProvisionURL(issuer, account, secret string) (string, error) {
	raw, err := DecodeSecret(secret)
	if err != nil {
		return "", err
	}
	key, err := otptotp.Generate(otptotp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      uint(Period / time.Second),
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("build otpauth url: %w", err)
	}
	return key.URL(), nil
}

func counterAt(t time.Time) int64 {
	return t.UnixMilli() / Period.Milliseconds()
}

func hotp(key []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", Digits, bin%codeModulus)
}

func wellFormed(code string) bool {
	if len(code) != Digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
