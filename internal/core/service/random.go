package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// randomValue returns n random bytes encoded as unpadded base64url.
func randomValue(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
