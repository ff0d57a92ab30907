package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	t.Run("app error passes through wrapping", func(t *testing.T) {
		orig := NewConflictError("username already taken")
		wrapped := fmt.Errorf("register: %w", orig)

		got := FromError(wrapped)
		assert.Same(t, orig, got)
		assert.Equal(t, http.StatusConflict, got.StatusCode)
		assert.Equal(t, CodeConflict, got.Code)
	})

	t.Run("plain error hides its text", func(t *testing.T) {
		got := FromError(stderrors.New("dial tcp: connection refused"))
		assert.Equal(t, http.StatusInternalServerError, got.StatusCode)
		assert.NotContains(t, got.Message, "connection refused")
		assert.ErrorContains(t, got.Cause, "connection refused")
	})

	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, FromError(nil))
	})
}

func TestErrorHandlerRendersFirstError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(NewUpstreamError("Failed to process chat request.", stderrors.New("openai: 502 bad gateway")))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeUpstream, body.Error.Code)
	assert.Equal(t, "Failed to process chat request.", body.Error.Message)
	assert.NotContains(t, w.Body.String(), "bad gateway")
}

func TestRecoveryWithLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryWithLogger())
	r.GET("/panic", func(c *gin.Context) {
		panic("nil map")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/panic", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), CodeServer)
}
