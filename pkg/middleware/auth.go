package middleware

import (
	stderrors "errors"

	"talking-avatar/backend/internal/auth"
	"talking-avatar/backend/pkg/errors"
	"talking-avatar/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// identityKey is where the session guard stores the caller in the gin context
const identityKey = "identity"

// Authenticator resolves an Authorization header to a caller
type Authenticator interface {
	Authenticate(header string) (auth.Identity, error)
}

// RequireSession rejects requests without a live bearer session. On success the
// identity is available through Identity(c) and auth.IdentityFrom(ctx).
func RequireSession(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authn.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			msg := auth.ErrInvalidToken.Error()
			if stderrors.Is(err, auth.ErrMissingToken) {
				msg = auth.ErrMissingToken.Error()
			}
			c.Error(errors.NewUnauthorizedError(msg))
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Set(logger.UsernameKey, id.Username)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))

		c.Next()
	}
}

// Identity returns the caller set by RequireSession
func Identity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
