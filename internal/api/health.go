package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Index is the liveness probe at the root path
func Index(c *gin.Context) {
	c.String(http.StatusOK, "Hello World!")
}

// Health serves the component report produced by a health.Checker
func Health(report http.HandlerFunc) gin.HandlerFunc {
	return gin.WrapF(report)
}
