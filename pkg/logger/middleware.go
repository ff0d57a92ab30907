package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// ContextKey is where the request-scoped logger lives in the gin context
	ContextKey = "logger"
	// RequestIDHeader carries the request id in and out
	RequestIDHeader = "X-Request-ID"
	// UsernameKey is set by the session guard once a caller is authenticated
	UsernameKey = "username"
)

// Middleware returns a Gin middleware function that logs requests
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Generate a request ID if one doesn't exist
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set("requestID", requestID)

		// Create a request-scoped logger
		reqLogger := logger.WithRequestID(requestID)
		c.Set(ContextKey, reqLogger)

		// Record start time
		start := time.Now()

		// Process request
		c.Next()

		// The session guard runs after us, so the username is only known now
		reqLogger.LogRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
			c.GetString(UsernameKey),
		)
	}
}

// FromContext returns the request-scoped logger, falling back to the global one
func FromContext(c *gin.Context) *Logger {
	if l, ok := c.Get(ContextKey); ok {
		if reqLogger, ok := l.(*Logger); ok {
			return reqLogger
		}
	}
	return GetGlobal()
}
