// Package router assembles the gin engine: global middleware, route groups and guards.
package router

import (
	"net/http"
	"slices"

	"talking-avatar/backend/internal/api"
	"talking-avatar/backend/pkg/config"
	"talking-avatar/backend/pkg/di"
	"talking-avatar/backend/pkg/errors"
	"talking-avatar/backend/pkg/logger"
	"talking-avatar/backend/pkg/middleware"
	"talking-avatar/backend/pkg/validator"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	Config      *config.Config
	RateLimiter *middleware.RateLimiter
}

// New creates a router with the global middleware installed
func New(container *di.Container) *Router {
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.RequestContext())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))

	opts := middleware.DefaultRateLimiterOptions()
	if cfg.Security.RateLimit > 0 {
		opts.Limit = rate.Limit(cfg.Security.RateLimit)
	}
	if cfg.Security.RateLimitBurst > 0 {
		opts.Burst = cfg.Security.RateLimitBurst
	}
	rateLimiter := middleware.NewRateLimiter(container.Logger, opts)
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		Config:      cfg,
		RateLimiter: rateLimiter,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	authHandler := api.NewAuthHandler(c.Gateway, r.Logger)
	chatHandler := api.NewChatHandler(c.Pipeline, c.Transcriber, r.Config.Security.MaxUploadSize)
	voicesHandler := api.NewVoicesHandler(c.Voices, c.Cache, r.Config.Cache.VoicesTTL)

	requireSession := middleware.RequireSession(c.Gateway)
	validate := r.openAPIValidation()

	r.Engine.GET("/", api.Index)
	r.Engine.GET("/health", api.Health(c.Health.HTTPHandler()))
	r.Engine.GET("/voices", voicesHandler.List)
	r.Engine.GET("/openapi.yaml", func(ctx *gin.Context) {
		ctx.Data(http.StatusOK, "application/yaml", validator.Schema())
	})
	if h := c.Observability.MetricsHandler(); h != nil {
		r.Engine.GET("/metrics", gin.WrapH(h))
	}

	authRoutes := r.Engine.Group("/auth")
	authRoutes.Use(validate...)
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", requireSession, authHandler.Logout)
	}

	// The guard runs before validation so an anonymous caller always gets 401
	chatRoutes := r.Engine.Group("/chat")
	chatRoutes.Use(requireSession)
	chatRoutes.Use(validate...)
	{
		chatRoutes.POST("", chatHandler.Chat)
		chatRoutes.POST("/voice", chatHandler.Voice)
		chatRoutes.GET("/ws", c.Hub.ServeWS)
	}
}

func (r *Router) openAPIValidation() []gin.HandlerFunc {
	if !r.Config.Observability.OpenAPIValidation {
		return nil
	}

	v, err := validator.NewOpenAPIValidator()
	if err != nil {
		r.Logger.LogError(err, "Failed to initialize OpenAPI validator, requests are not validated")
		return nil
	}
	r.Logger.Info("OpenAPI validation enabled")
	return []gin.HandlerFunc{v.Middleware()}
}

func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0 || slices.Contains(allowed, "*")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(allowed, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Authorization, Origin, X-Request-ID, Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
