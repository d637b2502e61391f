package authcore

import (
	"fmt"

	"github.com/workhub/authcore/password"
)

// checkPasswordPolicy enforces the length bounds. The upper bound is the
// bcrypt input limit; longer passwords would be silently truncated.
func checkPasswordPolicy(pw string, minLength int) error {
	if len(pw) < minLength {
		return fmt.Errorf("%w: must be at least %d bytes", ErrPasswordPolicy, minLength)
	}
	if len(pw) > password.MaxPasswordBytes {
		return fmt.Errorf("%w: must be at most %d bytes", ErrPasswordPolicy, password.MaxPasswordBytes)
	}
	return nil
}
