package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// tokenBytes is the entropy behind every session token (48 hex chars)
const tokenBytes = 24

// SessionRegistry maps opaque bearer tokens to usernames
type SessionRegistry interface {
	Issue(username string) (string, error)
	Resolve(token string) (string, bool)
	Revoke(token string)
	Count() int
}

// MemorySessions keeps sessions for the lifetime of the process.
// There is no expiry; a restart drops every session.
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]string
}

// NewMemorySessions creates an empty registry
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]string)}
}

// Issue mints a new token for username. Earlier tokens for the same user stay valid.
func (m *MemorySessions) Issue(username string) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := hex.EncodeToString(b)

	m.mu.Lock()
	m.sessions[token] = username
	m.mu.Unlock()

	return token, nil
}

// Resolve returns the username bound to token
func (m *MemorySessions) Resolve(token string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	username, ok := m.sessions[token]
	return username, ok
}

// Revoke drops token. Unknown tokens are ignored.
func (m *MemorySessions) Revoke(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// Count returns the number of live sessions
func (m *MemorySessions) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}
