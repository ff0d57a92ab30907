package validator

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"talking-avatar/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupValidatedRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := NewOpenAPIValidator()
	require.NoError(t, err)

	echo := func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.Data(http.StatusOK, "application/json", body)
	}

	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.Use(v.Middleware())
	r.POST("/auth/register", echo)
	r.POST("/chat", echo)
	r.GET("/voices", echo)
	return r
}

func TestValidatorRequests(t *testing.T) {
	r := setupValidatedRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"valid credentials", http.MethodPost, "/auth/register", `{"username":"ana","password":"wawa"}`, http.StatusOK},
		{"missing password", http.MethodPost, "/auth/register", `{"username":"ana"}`, http.StatusBadRequest},
		{"wrong type", http.MethodPost, "/auth/register", `{"username":1,"password":"wawa"}`, http.StatusBadRequest},
		{"not json", http.MethodPost, "/auth/register", `username=ana`, http.StatusBadRequest},
		{"chat without message", http.MethodPost, "/chat", `{}`, http.StatusOK},
		{"chat message not a string", http.MethodPost, "/chat", `{"message":42}`, http.StatusBadRequest},
		{"undocumented route", http.MethodGet, "/voices", ``, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestValidatorKeepsBodyReadable(t *testing.T) {
	r := setupValidatedRouter(t)

	body := `{"username":"ana","password":"wawa"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, body, w.Body.String())
}

func TestValidatorErrorShape(t *testing.T) {
	r := setupValidatedRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, errors.CodeValidation, resp.Error.Code)
}

func TestInvalidDocumentIsRejected(t *testing.T) {
	_, err := newValidator([]byte("openapi: 3.0.3\npaths: 12\n"))
	assert.Error(t, err)
}
