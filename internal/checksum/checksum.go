// Package checksum provides the content digest used to fence off
// cross-app duplicate notifications at the bridge.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Text returns the digest of a string without an explicit conversion at
// every call site.
func Text(s string) string {
	return Sum([]byte(s))
}
