package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"unsafe"
)

// BytesToString converts a byte slice to a string without copying.
// The slice must not be mutated afterwards.
func BytesToString(buf []byte) string {
	return *(*string)(unsafe.Pointer(&buf))
}

// GenerateRandomBytes returns n securely generated random bytes, or an
// error if the system's random source fails (the caller should abort).
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateRandomString returns a URL-safe, base64 encoded random string
// built from s random bytes. Used for session tokens.
func GenerateRandomString(s int) (string, error) {
	b, err := GenerateRandomBytes(s)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
