package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// HashParams are the argon2id cost parameters
type HashParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultHashParams matches the interactive-login recommendation for argon2id
func DefaultHashParams() HashParams {
	return HashParams{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		KeyLen:  32,
		SaltLen: 16,
	}
}

// PasswordHasher derives and checks salted password digests.
// Digests and salts are hex strings so they store as plain text columns.
type PasswordHasher struct {
	params HashParams
}

// NewPasswordHasher creates a hasher with the given parameters
func NewPasswordHasher(params HashParams) *PasswordHasher {
	return &PasswordHasher{params: params}
}

// NewSalt returns a fresh random salt
func (h *PasswordHasher) NewSalt() (string, error) {
	b := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash derives the digest for password under salt. Same inputs, same digest.
func (h *PasswordHasher) Hash(password, salt string) string {
	return hex.EncodeToString(h.derive(password, []byte(salt)))
}

// Verify recomputes the digest and compares it in constant time.
// A stored digest of the wrong length or encoding simply fails.
func (h *PasswordHasher) Verify(password, storedDigest, salt string) bool {
	stored, err := hex.DecodeString(storedDigest)
	if err != nil || len(stored) != int(h.params.KeyLen) {
		return false
	}
	candidate := h.derive(password, []byte(salt))
	return subtle.ConstantTimeCompare(stored, candidate) == 1
}

func (h *PasswordHasher) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
}
