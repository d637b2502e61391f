package vault

// legacySalt keys every envelope written before per-secret salts.
//
// Deprecated: only FormatLegacy decryption reads this. Delete it once a
// re-encryption sweep has moved every stored secret to FormatCurrent.
var legacySalt = []byte("workhub.mfa.secret.v1")

func (v *Vault) legacyKey() []byte {
	return v.deriveKey(legacySalt)
}
