package api

import (
	"context"
	stderrors "errors"
	"net/http"

	"talking-avatar/backend/internal/auth"
	"talking-avatar/backend/internal/models"
	"talking-avatar/backend/pkg/errors"
	"talking-avatar/backend/pkg/logger"
	"talking-avatar/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// AuthService is implemented by auth.Gateway
type AuthService interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error)
	Logout(token string)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	service AuthService
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// Register handles account creation. It does not log the user in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("Invalid request format"))
		return
	}

	err := h.service.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, models.StatusResponse{Status: "registered"})
	case stderrors.Is(err, auth.ErrMissingCredentials), stderrors.Is(err, auth.ErrPasswordTooShort):
		c.Error(errors.NewValidationError(err.Error()))
	case stderrors.Is(err, auth.ErrUsernameTaken):
		c.Error(errors.NewConflictError(err.Error()))
	default:
		c.Error(errors.NewInternalServerError("Failed to create user account").WithCause(err))
	}
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("Invalid request format"))
		return
	}

	token, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		logger.FromContext(c).Info("User logged in", "username", req.Username)
		c.JSON(http.StatusOK, models.LoginResponse{Token: token, Username: req.Username})
	case stderrors.Is(err, auth.ErrMissingCredentials):
		c.Error(errors.NewValidationError(err.Error()))
	case stderrors.Is(err, auth.ErrInvalidCredentials):
		c.Error(errors.NewUnauthorizedError(err.Error()))
	default:
		c.Error(errors.NewInternalServerError("An error occurred during login").WithCause(err))
	}
}

// Logout revokes the token the request was authenticated with
func (h *AuthHandler) Logout(c *gin.Context) {
	id, ok := middleware.Identity(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError(auth.ErrMissingToken.Error()))
		return
	}

	h.service.Logout(id.Token)
	c.JSON(http.StatusOK, models.StatusResponse{Status: "logged_out"})
}
