// Package middleware adapts authcore to gin.
//
// # Handlers
//
//   - [RequireAccess] verifies the Bearer access token and stores the
//     [authcore.Principal] on the gin context.
//   - [RateLimit] consults an [authcore.RateLimiter] and answers 429 with a
//     Retry-After header when the budget is spent.
//   - [ClientIP] resolves the caller address, optionally from
//     X-Forwarded-For, and puts it on the request context for audit events.
//   - [RequestLogger] writes one structured log line per request.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the engine).
//   - Make authorization decisions beyond pass/reject on token validity.
//   - Log tokens, passwords or request bodies.
package middleware
