package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns a stable hex identifier for a secret or user-supplied key.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Fingerprint is a shortened HashKey for use in identifiers and logs.
func Fingerprint(s string) string {
	return HashKey(s)[:16]
}
