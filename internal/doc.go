// Package internal contains helpers private to authcore: token and ID
// generation and the at-rest hash used for refresh and reset tokens.
//
// # Sub-packages
//
//   - config: layered TOML, .env and environment loading for cmd/authd
//   - limiters: lockout policy and the MFA verify throttle
//   - rate: fixed-window limiters (memory and Redis)
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
