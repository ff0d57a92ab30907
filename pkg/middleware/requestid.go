package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

type contextKey string

// RequestIDKey is the key for request ID values in contexts
const RequestIDKey contextKey = "requestID"

// RequestContext copies the request id assigned by the logging middleware into
// the request context so code below the handlers can see it.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestID := c.GetString("requestID"); requestID != "" {
			c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), RequestIDKey, requestID))
		}
		c.Next()
	}
}

// GetRequestID extracts the request ID from a context
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// Detached returns the request context without its cancellation. Work started
// for a request runs to completion even if the client disconnects; callers
// bound it with their own timeouts.
func Detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
