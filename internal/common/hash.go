package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashKey joins parts with "|" and returns the hex SHA-256 of the result, for
// building fixed-length cache keys out of request data.
func HashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
