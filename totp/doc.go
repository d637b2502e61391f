// Package totp implements RFC 6238 time-based one-time passwords.
//
// Codes are six digits from HMAC-SHA1 over 30-second steps. Verification
// accepts the current step and one step on either side to absorb clock
// drift between server and authenticator app.
//
// Secrets travel as unpadded RFC 4648 base32 strings, the form authenticator
// apps expect in otpauth:// URLs.
package totp
