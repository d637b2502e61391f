package totp

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	otptotp "github.com/pquerna/otp/totp"
)

// Base32 of the ASCII secret "12345678901234567890" from RFC 6238 Appendix B.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerateRFC6238Vectors(t *testing.T) {
	// RFC 6238 lists 8-digit SHA1 codes. A 6-digit code is the same value
	// reduced mod 10^6, so the last six digits must match.
	cases := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}

	for _, tc := range cases {
		got, err := Generate(rfcSecret, time.Unix(tc.unix, 0))
		if err != nil {
			t.Fatalf("Generate(%d) error: %v", tc.unix, err)
		}
		if got != tc.code {
			t.Fatalf("Generate(%d) = %s, want %s", tc.unix, got, tc.code)
		}
		if !Verify(rfcSecret, tc.code, time.Unix(tc.unix, 0)) {
			t.Fatalf("Verify rejected RFC vector at %d", tc.unix)
		}
	}
}

func TestGenerateMatchesIndependentImplementation(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret error: %v", err)
	}

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		at := start.Add(time.Duration(i) * 17 * time.Second)
		want, err := otptotp.GenerateCodeCustom(secret, at, otptotp.ValidateOpts{
			Period:    30,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			t.Fatalf("reference error: %v", err)
		}
		got, err := Generate(secret, at)
		if err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		if got != want {
			t.Fatalf("at %s: got %s, reference %s", at, got, want)
		}
	}
}

func TestVerifyDriftWindow(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 15, 0, time.UTC)
	code, err := Generate(rfcSecret, at)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	for _, offset := range []time.Duration{0, 30 * time.Second, -30 * time.Second} {
		if !Verify(rfcSecret, code, at.Add(offset)) {
			t.Fatalf("expected code to verify at offset %s", offset)
		}
	}
	for _, offset := range []time.Duration{90 * time.Second, -90 * time.Second, 10 * time.Minute} {
		if Verify(rfcSecret, code, at.Add(offset)) {
			t.Fatalf("expected code to be rejected at offset %s", offset)
		}
	}
}

func TestVerifyRejectsMalformedCodes(t *testing.T) {
	at := time.Unix(59, 0)
	for _, code := range []string{"", "28708", "2870822", "28708a", "+28708", "２８７０８２", "287 082"} {
		if Verify(rfcSecret, code, at) {
			t.Fatalf("expected %q to be rejected", code)
		}
	}
	if !Verify(rfcSecret, " 287082 ", at) {
		t.Fatal("surrounding whitespace should be tolerated")
	}
}

func TestVerifyRejectsBadSecret(t *testing.T) {
	if Verify("not base32!", "123456", time.Now()) {
		t.Fatal("expected invalid secret to fail verification")
	}
	if _, err := Generate("", time.Now()); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestGenerateSecretShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		secret, err := GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret error: %v", err)
		}
		if len(secret) != 32 || strings.Contains(secret, "=") {
			t.Fatalf("unexpected secret shape %q", secret)
		}
		raw, err := DecodeSecret(secret)
		if err != nil || len(raw) != SecretSize {
			t.Fatalf("secret does not decode to %d bytes: %v", SecretSize, err)
		}
		if seen[secret] {
			t.Fatal("duplicate secret generated")
		}
		seen[secret] = true
	}
}

func TestDecodeSecretIsLenient(t *testing.T) {
	want, err := DecodeSecret(rfcSecret)
	if err != nil {
		t.Fatalf("DecodeSecret error: %v", err)
	}
	for _, variant := range []string{
		strings.ToLower(rfcSecret),
		"GEZD GNBV GY3T QOJQ GEZD GNBV GY3T QOJQ",
		"GEZD-GNBV-GY3T-QOJQ-GEZD-GNBV-GY3T-QOJQ",
	} {
		got, err := DecodeSecret(variant)
		if err != nil {
			t.Fatalf("DecodeSecret(%q) error: %v", variant, err)
		}
		if string(got) != string(want) {
			t.Fatalf("DecodeSecret(%q) mismatch", variant)
		}
	}
	if EncodeSecret(want) != rfcSecret {
		t.Fatal("EncodeSecret must round-trip the RFC secret")
	}
}

func TestProvisionURL(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret error: %v", err)
	}

	raw, err := ProvisionURL("HR Portal", "jane@example.com", secret)
	if err != nil {
		t.Fatalf("ProvisionURL error: %v", err)
	}

	key, err := otp.NewKeyFromURL(raw)
	if err != nil {
		t.Fatalf("NewKeyFromURL error: %v", err)
	}
	if key.Type() != "totp" || key.Issuer() != "HR Portal" || key.AccountName() != "jane@example.com" {
		t.Fatalf("unexpected key metadata: %s", raw)
	}
	if key.Secret() != secret {
		t.Fatalf("secret mismatch: got %s want %s", key.Secret(), secret)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url parse: %v", err)
	}
	if u.Query().Get("digits") != "6" || u.Query().Get("period") != "30" {
		t.Fatalf("unexpected parameters: %s", u.RawQuery)
	}
}
