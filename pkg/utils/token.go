package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateInviteToken returns a 32-char hex token for group invite links.
func GenerateInviteToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}
