package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHashParams keeps argon2 cheap so the suite stays fast
func testHashParams() HashParams {
	return HashParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
}

func TestHashIsDeterministic(t *testing.T) {
	h := NewPasswordHasher(testHashParams())

	salt, err := h.NewSalt()
	require.NoError(t, err)

	assert.Equal(t, h.Hash("wawa", salt), h.Hash("wawa", salt))
	assert.NotEqual(t, h.Hash("wawa", salt), h.Hash("wawb", salt))
	assert.Len(t, h.Hash("wawa", salt), 64)
}

func TestNewSaltIsRandom(t *testing.T) {
	h := NewPasswordHasher(testHashParams())

	a, err := h.NewSalt()
	require.NoError(t, err)
	b, err := h.NewSalt()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestVerify(t *testing.T) {
	h := NewPasswordHasher(testHashParams())
	salt, err := h.NewSalt()
	require.NoError(t, err)
	digest := h.Hash("wawa", salt)

	tests := []struct {
		name     string
		password string
		digest   string
		salt     string
		want     bool
	}{
		{"correct password", "wawa", digest, salt, true},
		{"wrong password", "wawb", digest, salt, false},
		{"wrong salt", "wawa", digest, salt + "00", false},
		{"digest not hex", "wawa", "zz" + digest[2:], salt, false},
		{"digest truncated", "wawa", digest[:10], salt, false},
		{"empty digest", "wawa", "", salt, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Verify(tt.password, tt.digest, tt.salt))
		})
	}
}
