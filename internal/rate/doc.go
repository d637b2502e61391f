// Package rate provides fixed-window request counters keyed by caller identity.
//
// # Window semantics
//
// The first hit for a key opens a window of Config.Window and sets count=1.
// Later hits inside the window increment the count. A hit that pushes the
// count past Config.Max is rejected with a retry-after equal to the time left
// in the window. Once the window elapses the next hit opens a fresh one.
//
// Two implementations share the [Limiter] interface:
//   - [MemoryLimiter] keeps windows in a process-local map.
//   - [RedisLimiter] keeps them in Redis (INCR + PEXPIRE) so replicas share counters.
//
// # What this package must NOT do
//
//   - Hold package-level limiter state. Callers construct one limiter and inject it.
//   - Decide what a rejection means (status codes, audit events).
package rate
