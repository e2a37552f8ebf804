// Package http provides the HTTP server, its router and the shared middleware.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	accessHTTP "github.com/allisson/envsafe/internal/access/http"
	authHTTP "github.com/allisson/envsafe/internal/auth/http"
	authService "github.com/allisson/envsafe/internal/auth/service"
	"github.com/allisson/envsafe/internal/config"
	"github.com/allisson/envsafe/internal/metrics"
	rotationHTTP "github.com/allisson/envsafe/internal/rotation/http"
	secretsHTTP "github.com/allisson/envsafe/internal/secrets/http"
)

// Admin endpoints are limited per client IP regardless of RATE_LIMIT_ENABLED.
const (
	adminRateLimitRequestsPerSec = 1.0
	adminRateLimitBurst          = 5
)

// Server represents the HTTP server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server. The router is built by SetupRouter.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the gin engine with every route.
//
// Route groups:
//   - /health, /ready: unauthenticated probes
//   - /v1: caller identity from X-User-ID, per-user rate limit when enabled
//   - /v1/admin: per-IP rate limit and the admin bearer token
//
// ctx bounds the lifetime of the rate limiter cleanup goroutines.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	accessHandler *accessHTTP.AccessHandler,
	secretHandler *secretsHTTP.SecretHandler,
	rotationHandler *rotationHTTP.RotationHandler,
	tokenService authService.AdminTokenService,
	meterProvider metric.MeterProvider,
) {
	gin.SetMode(cfg.GetGinMode())

	router := gin.New()
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	// The access log wraps recovery so recovered panics are logged as 500s.
	router.Use(CustomLoggerMiddleware(s.logger))
	router.Use(gin.Recovery())

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if cfg.MetricsEnabled && meterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(meterProvider, cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")

	admin := v1.Group("/admin")
	admin.Use(authHTTP.AdminRateLimitMiddleware(ctx, adminRateLimitRequestsPerSec, adminRateLimitBurst, s.logger))
	admin.Use(authHTTP.AdminMiddleware(tokenService, cfg.AdminTokenHash, s.logger))
	{
		admin.POST("/key-rotation", rotationHandler.TriggerHandler)
		admin.GET("/key-rotation/:job_id", rotationHandler.StatusHandler)
		admin.POST("/key-rotation/:job_id/fail", rotationHandler.FailHandler)
	}

	user := v1.Group("")
	user.Use(authHTTP.IdentityMiddleware(s.logger))
	if cfg.RateLimitEnabled {
		user.Use(authHTTP.RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	projects := user.Group("/projects")
	{
		projects.POST("", accessHandler.CreateProjectHandler)
		projects.GET("/:project_id/role", accessHandler.GetRoleHandler)
		projects.POST("/:project_id/requests", accessHandler.RequestAccessHandler)
		projects.POST("/:project_id/requests/:request_id/approve", accessHandler.ApproveRequestHandler)
		projects.PUT("/:project_id/members/:user_id", accessHandler.PutMemberHandler)
		projects.PATCH("/:project_id/members/:user_id", accessHandler.PatchMemberHandler)
		projects.DELETE("/:project_id/members/:user_id", accessHandler.DeleteMemberHandler)
		projects.POST("/:project_id/transfer", accessHandler.TransferOwnershipHandler)
		projects.POST("/:project_id/secrets", secretHandler.CreateHandler)
		projects.GET("/:project_id/secrets", secretHandler.ListHandler)
	}

	secrets := user.Group("/secrets")
	{
		secrets.GET("/:secret_id", secretHandler.GetHandler)
		secrets.PUT("/:secret_id", secretHandler.UpdateHandler)
		secrets.DELETE("/:secret_id", secretHandler.DeleteHandler)
		secrets.PUT("/:secret_id/shares/:user_id", accessHandler.PutShareHandler)
		secrets.DELETE("/:secret_id/shares/:user_id", accessHandler.DeleteShareHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not initialized: call SetupRouter first")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready once the database answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.db.PingContext(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": "ok"},
	})
}
