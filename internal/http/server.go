// Package http provides the admin HTTP server, its middleware and the metrics server.
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

	"github.com/allisson/courier/internal/config"
	hospitalHTTP "github.com/allisson/courier/internal/hospital/http"
	"github.com/allisson/courier/internal/metrics"
	outboxHTTP "github.com/allisson/courier/internal/outbox/http"
	schedulerHTTP "github.com/allisson/courier/internal/scheduler/http"
)

// Server represents the admin HTTP server.
type Server struct {
	db          *sql.DB
	server      *http.Server
	router      *gin.Engine
	logger      *slog.Logger
	stopLimiter context.CancelFunc
}

// NewServer creates a new HTTP server. Call SetupRouter before Start.
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

// SetupRouter registers the middleware chain and every route. Handlers left nil have their
// routes omitted.
func (s *Server) SetupRouter(
	cfg *config.Config,
	metricsProvider *metrics.Provider,
	recordHandler *hospitalHTTP.RecordHandler,
	outboxHandler *outboxHTTP.OutboxHandler,
	jobHandler *schedulerHTTP.JobHandler,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	if cfg.RateLimitEnabled {
		limiterCtx, cancel := context.WithCancel(context.Background())
		s.stopLimiter = cancel
		v1.Use(RateLimitMiddleware(limiterCtx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	if recordHandler != nil {
		hospital := v1.Group("/hospital")
		hospital.GET("", recordHandler.ListHandler)
		hospital.GET("/:id", recordHandler.GetHandler)
	}

	if outboxHandler != nil {
		outbox := v1.Group("/outbox")
		outbox.GET("/stats", outboxHandler.StatsHandler)
		outbox.GET("/items", outboxHandler.ListPendingHandler)
	}

	if jobHandler != nil {
		jobs := v1.Group("/jobs")
		jobs.GET("", jobHandler.ListHandler)
		jobs.POST("/:task_name", jobHandler.EnqueueHandler)
		jobs.GET("/:task_name/:instance_id", jobHandler.GetHandler)
		jobs.DELETE("/:task_name/:instance_id", jobHandler.CancelHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	if s.stopLimiter != nil {
		s.stopLimiter()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready only while the database answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("readiness check failed", slog.Any("error", err))
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
