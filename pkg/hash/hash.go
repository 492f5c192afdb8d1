package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the hex-encoded SHA256 hash of the input.
func SHA256Hex(input []byte) string {
	h := sha256.Sum256(input)
	return hex.EncodeToString(h[:])
}

// ETag returns a quoted strong ETag derived from the content, suitable for
// If-None-Match comparison.
func ETag(content []byte) string {
	return `"` + SHA256Hex(content)[:16] + `"`
}
