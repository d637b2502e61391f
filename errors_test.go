package authcore

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindInternal},
		{"unauthorized sentinel", ErrUnauthorized, KindUnauthorized},
		{"reasoned unauthorized", unauthorized("bad_password"), KindUnauthorized},
		{"password policy", ErrPasswordPolicy, KindValidation},
		{"mfa already enabled", ErrMFAAlreadyEnabled, KindConflict},
		{"rate limited", &RateLimitedError{RetryAfter: time.Second}, KindRateLimited},
		{"internal", internalError(errors.New("db down")), KindInternal},
		{"wrapped unauthorized", fmt.Errorf("verify: %w", unauthorized("x")), KindUnauthorized},
		{"unknown", errors.New("boom"), KindInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestAuthErrorHidesReason(t *testing.T) {
	err := unauthorized("account_locked")

	if err.Error() != "unauthorized" {
		t.Fatalf("reason leaked into message: %q", err.Error())
	}
	if failureReason(err) != "account_locked" {
		t.Fatalf("unexpected reason %q", failureReason(err))
	}
	if failureReason(errors.New("x")) != "" {
		t.Fatal("expected empty reason for foreign error")
	}
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	cases := map[time.Duration]int{
		0:                       1,
		200 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		59 * time.Second:        59,
	}
	for d, want := range cases {
		if got := (&RateLimitedError{RetryAfter: d}).RetryAfterSeconds(); got != want {
			t.Fatalf("RetryAfterSeconds(%v) = %d, want %d", d, got, want)
		}
	}
}

func TestPasswordPolicyBounds(t *testing.T) {
	if err := checkPasswordPolicy("1234567", 8); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected short password rejected, got %v", err)
	}
	if err := checkPasswordPolicy("12345678", 8); err != nil {
		t.Fatalf("expected 8 bytes accepted, got %v", err)
	}
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'x'
	}
	if err := checkPasswordPolicy(string(long), 8); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected 73 bytes rejected, got %v", err)
	}
	if err := checkPasswordPolicy(string(long[:72]), 8); err != nil {
		t.Fatalf("expected 72 bytes accepted, got %v", err)
	}
}
