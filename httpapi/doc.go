// Package httpapi binds the authcore engine to HTTP under the /auth prefix.
//
// Handlers decode JSON, call one Engine operation and map the error
// taxonomy onto status codes:
//
//	ErrUnauthorized -> 401 {"error":"unauthorized"}
//	ErrValidation   -> 400 {"error":"invalid request","detail":...}
//	ErrConflict     -> 409
//	ErrRateLimited  -> 429 with Retry-After
//	anything else   -> 500 {"error":"internal error"}
//
// # What this package must NOT do
//
//   - Reveal why authentication failed or whether an email exists.
//   - Implement authentication rules; the engine owns them.
package httpapi
