// Package checksum computes content digests reported for saved artifacts.
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

// Matches reports whether data hashes to the hex digest want. Case is ignored.
func Matches(data []byte, want string) bool {
	got := Sum(data)
	if len(want) != len(got) {
		return false
	}
	for i := 0; i < len(got); i++ {
		c := want[i]
		if 'A' <= c && c <= 'F' {
			c += 'a' - 'A'
		}
		if c != got[i] {
			return false
		}
	}
	return true
}
