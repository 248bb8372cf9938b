package services

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	digestSize = 64

	DefaultHashIterations = 210_000
)

// PasswordHasher derives PBKDF2-HMAC-SHA512 digests. Stored hashes are
// base64(salt || digest) with a fresh random salt per call.
type PasswordHasher struct {
	iterations int
}

func NewPasswordHasher(iterations int) *PasswordHasher {
	if iterations <= 0 {
		iterations = DefaultHashIterations
	}
	return &PasswordHasher{iterations: iterations}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	digest := h.derive(password, salt)

	out := make([]byte, 0, saltSize+digestSize)
	out = append(out, salt...)
	out = append(out, digest...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Verify reports whether password matches stored. The digest comparison runs
// in constant time.
func (h *PasswordHasher) Verify(password, stored string) bool {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) != saltSize+digestSize {
		return false
	}
	salt, want := raw[:saltSize], raw[saltSize:]
	return subtle.ConstantTimeCompare(h.derive(password, salt), want) == 1
}

func (h *PasswordHasher) derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, h.iterations, digestSize, sha512.New)
}
