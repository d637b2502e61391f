package vault

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedEnvelope is returned when an envelope cannot be parsed.
var ErrMalformedEnvelope = errors.New("malformed secret envelope")

// EnvelopeFormat identifies the on-disk layout of an envelope.
type EnvelopeFormat uint8

const (
	// FormatLegacy is iv:tag:ciphertext, keyed with the historical salt.
	FormatLegacy EnvelopeFormat = iota + 1
	// FormatCurrent is salt:iv:tag:ciphertext.
	FormatCurrent
)

func (f EnvelopeFormat) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatCurrent:
		return "current"
	default:
		return "unknown"
	}
}

// Envelope is a parsed ciphertext envelope.
type Envelope struct {
	Format     EnvelopeFormat
	Salt       []byte
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

// ParseEnvelope decodes s and reports its format.
func ParseEnvelope(s string) (Envelope, error) {
	parts := strings.Split(s, ":")

	var env Envelope
	var fields [][]byte
	switch len(parts) {
	case 4:
		env.Format = FormatCurrent
	case 3:
		env.Format = FormatLegacy
	default:
		return Envelope{}, fmt.Errorf("%w: expected 3 or 4 fields, got %d", ErrMalformedEnvelope, len(parts))
	}

	for i, part := range parts {
		b, err := base64.StdEncoding.DecodeString(part)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: field %d: %v", ErrMalformedEnvelope, i, err)
		}
		fields = append(fields, b)
	}
	if env.Format == FormatCurrent {
		env.Salt, fields = fields[0], fields[1:]
		if len(env.Salt) < saltSize {
			return Envelope{}, fmt.Errorf("%w: salt too short", ErrMalformedEnvelope)
		}
	}
	env.IV, env.Tag, env.Ciphertext = fields[0], fields[1], fields[2]

	if len(env.IV) != nonceSize {
		return Envelope{}, fmt.Errorf("%w: iv must be %d bytes", ErrMalformedEnvelope, nonceSize)
	}
	if len(env.Tag) != tagSize {
		return Envelope{}, fmt.Errorf("%w: tag must be %d bytes", ErrMalformedEnvelope, tagSize)
	}
	if len(env.Ciphertext) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty ciphertext", ErrMalformedEnvelope)
	}
	return env, nil
}

// String serializes the envelope in its own format.
func (e Envelope) String() string {
	enc := base64.StdEncoding.EncodeToString
	fields := []string{enc(e.IV), enc(e.Tag), enc(e.Ciphertext)}
	if e.Format == FormatCurrent {
		fields = append([]string{enc(e.Salt)}, fields...)
	}
	return strings.Join(fields, ":")
}
