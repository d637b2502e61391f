// Package memory is an in-process implementation of the authcore store
// interfaces for tests and single-node development.
//
// All state lives behind one mutex. Conditional updates (refresh token
// revocation, reset token consumption) run under that mutex, which gives the
// same at-most-once guarantee a database provides with a guarded UPDATE.
// Returned records are copies; mutating them does not affect the store.
//
// # What this package must NOT do
//
//   - Persist anything across process restarts.
//   - Be used by multi-replica deployments.
package memory
