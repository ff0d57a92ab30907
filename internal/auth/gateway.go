// Package auth handles account registration, login and bearer-token sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"talking-avatar/backend/internal/models"
	"talking-avatar/backend/internal/store"
	"talking-avatar/backend/pkg/logger"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// DefaultMinPasswordLength is measured in characters, not bytes
const DefaultMinPasswordLength = 4

const bearerPrefix = "bearer "

// CredentialStore is the part of the user store the gateway needs
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, username, passwordHash, salt string) (*models.User, error)
}

// Identity is the caller resolved from a bearer token
type Identity struct {
	Username string
	Token    string
}

// Gateway ties the credential store, the hasher and the session registry together
type Gateway struct {
	store       CredentialStore
	sessions    SessionRegistry
	hasher      *PasswordHasher
	minPassword int
	log         *logger.Logger

	// decoySalt is hashed against when the username is unknown
	decoySalt string
}

// NewGateway creates a gateway. minPassword <= 0 selects DefaultMinPasswordLength.
func NewGateway(store CredentialStore, sessions SessionRegistry, hasher *PasswordHasher, minPassword int, log *logger.Logger) *Gateway {
	if minPassword <= 0 {
		minPassword = DefaultMinPasswordLength
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	salt, err := hasher.NewSalt()
	if err != nil {
		salt = "decoy"
	}
	return &Gateway{
		store:       store,
		sessions:    sessions,
		hasher:      hasher,
		minPassword: minPassword,
		log:         log,
		decoySalt:   salt,
	}
}

// Register creates an account. It does not log the user in.
func (g *Gateway) Register(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}
	if utf8.RuneCountInString(password) < g.minPassword {
		return fmt.Errorf("%w: minimum %d characters", ErrPasswordTooShort, g.minPassword)
	}

	salt, err := g.hasher.NewSalt()
	if err != nil {
		return err
	}

	if _, err := g.store.Create(ctx, username, g.hasher.Hash(password, salt), salt); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}

	g.log.Info("user registered", "username", username)
	return nil
}

// Login checks the password and issues a new session token. Unknown users and
// wrong passwords produce the same error.
func (g *Gateway) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrMissingCredentials
	}

	user, err := g.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.hasher.Hash(password, g.decoySalt)
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	if !g.hasher.Verify(password, user.PasswordHash, user.Salt) {
		g.log.Warn("login rejected", "username", username)
		return "", ErrInvalidCredentials
	}

	token, err := g.sessions.Issue(user.Username)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Logout revokes token. Revoking an unknown token is not an error.
func (g *Gateway) Logout(token string) {
	g.sessions.Revoke(token)
}

// Authenticate resolves an Authorization header value of the form "Bearer <token>".
// The scheme is matched case-insensitively.
func (g *Gateway) Authenticate(header string) (Identity, error) {
	token, ok := ParseBearer(header)
	if !ok {
		return Identity{}, ErrMissingToken
	}

	username, ok := g.sessions.Resolve(token)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Username: username, Token: token}, nil
}

// ParseBearer extracts the token from a bearer Authorization header
func ParseBearer(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

type identityKey struct{}

// WithIdentity attaches id to ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
