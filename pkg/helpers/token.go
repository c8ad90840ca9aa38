package helpers

import (
	"crypto/rand"
	"encoding/base64"
)

// VerificationTokenBytes is the entropy of generated tokens (256 bits).
const VerificationTokenBytes = 32

// RandomTokenGenerator produces URL-safe, unpadded tokens from crypto/rand.
type RandomTokenGenerator struct{}

// Generate returns a fresh opaque token.
func (RandomTokenGenerator) Generate() (string, error) {
	return GenToken(VerificationTokenBytes)
}

// GenToken base64url-encodes n random bytes without padding.
func GenToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
