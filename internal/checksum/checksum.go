// Package checksum derives content digests used for change detection and
// synthetic message ids.
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

// MessageID returns a stable message id for content that arrived without one.
func MessageID(data []byte) string {
	return "sha256:" + Sum(data)[:32]
}
