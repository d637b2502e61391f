// Package vault encrypts TOTP secrets at rest.
//
// Each secret is sealed with AES-256-GCM under a key derived from the master
// key and a random per-secret salt with argon2id. The stored envelope is four
// colon-separated base64 fields:
//
//	salt:iv:tag:ciphertext
//
// Envelopes written before per-secret salts existed have three fields
// (iv:tag:ciphertext) and are decrypted with a fixed historical salt. They
// are accepted for decryption only; [Vault.Encrypt] always writes the
// current format.
package vault
