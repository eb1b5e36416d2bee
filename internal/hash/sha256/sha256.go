// Package sha256 provides digest helpers for naming archived bodies.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Short returns the first 16 hex characters of the digest, enough to keep
// archive object names unique within a run while staying readable.
func Short(data []byte) string {
	return Sum(data)[:16]
}
