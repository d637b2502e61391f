// Package limiters holds the authentication-specific throttling policies
// built on top of internal/rate.
//
// # Policies
//
//   - [LockoutPolicy] pure state transitions for per-account brute-force lockout.
//   - [MFALimiter] per-user throttle for TOTP verification attempts.
//
// LockoutPolicy performs no I/O. The caller loads a [LockoutState] from the
// user row, applies a transition, and persists the result.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package except internal/rate.
//   - Read the clock. Every transition takes now from the caller.
package limiters
