package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

func GenerateCode(n int) (string, error) {
	// Make a slice of nBytes random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// RequestID returns a short correlation id for the X-Request-ID header.
// It falls back to a fixed marker when the random source fails.
func RequestID() string {
	code, err := GenerateCode(8)
	if err != nil {
		return "UNAVAILABLE"
	}
	return code
}
