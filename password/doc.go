// Package password hashes and verifies user passwords.
//
// New hashes are bcrypt with a configurable cost. Argon2id hashes in PHC form,
// imported from earlier deployments, still verify:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Authenticator.NeedsRehash] reports hashes that should be replaced with a
// fresh bcrypt hash on the next successful login.
//
// # What this package must NOT do
//
//   - Enforce password policy (length, composition). The Engine does that.
//   - Store passwords or log plaintext.
//   - Return errors from Verify. A malformed hash is just a non-match.
package password
