// Package ids provides identifier generation and deterministic hashing
// used across the pipeline.
package ids

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a random UUIDv4 string for surrogate keys.
func NewID() string {
	return uuid.NewString()
}

// HashHex returns the SHA-256 digest of s as lowercase hex.
func HashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHexBytes returns the SHA-256 digest of b as lowercase hex.
func HashHexBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
