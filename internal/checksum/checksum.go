// Package checksum fingerprints outline contents so unchanged documents can
// be recognised without comparing bytes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex SHA-256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns sum as a strong entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// Matches reports whether an If-None-Match header value names sum. The
// header may list several tags, use weak tags or be "*".
func Matches(header, sum string) bool {
	header = strings.TrimSpace(header)
	if header == "" || sum == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for tag := range strings.SplitSeq(header, ",") {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "W/")
		if tag == ETag(sum) {
			return true
		}
	}
	return false
}
