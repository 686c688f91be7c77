package util

import (
	"crypto/rand"
	"encoding/hex"
)

// RandHex returns 2n lowercase hex characters from crypto/rand.
func RandHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewID returns prefix + "_" + 12 hex characters, e.g. "conn_3fa91c0d22be".
func NewID(prefix string) string {
	return prefix + "_" + RandHex(6)
}
