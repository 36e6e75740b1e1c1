// Package http exposes the claim workflow over a gin router.
// Handlers only translate requests to façade calls and outcomes to responses.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/claim-approval/internal/application/service"
	"github.com/garyjia/claim-approval/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxUploadBytes: 32 << 20,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	claims     service.ClaimService
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewServer wires the routes. collector may be nil, in which case /metrics
// is not mounted.
func NewServer(config ServerConfig, claims service.ClaimService, collector *metrics.Collector, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultServerConfig().MaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadBytes

	server := &Server{
		config:  config,
		router:  router,
		claims:  claims,
		metrics: collector,
		logger:  logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.logger.Error("Recovered panic in HTTP handler",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   service.MsgUnexpected,
		})
	}))
	if s.metrics != nil {
		s.router.Use(s.metrics.GinMiddleware())
	}
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.claims, s.config.MaxUploadBytes, s.logger)

	s.router.GET("/health", handlers.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api")
	{
		api.POST("/lecturers", handlers.CreateLecturer)
		api.GET("/lecturers", handlers.ListLecturers)
		api.GET("/lecturers/:id/claims", handlers.ClaimsForLecturer)

		api.POST("/claims", handlers.SubmitClaim)
		api.POST("/claims/:id/coordinator/verify", handlers.CoordinatorVerify)
		api.POST("/claims/:id/coordinator/reject", handlers.CoordinatorReject)
		api.POST("/claims/:id/manager/approve", handlers.ManagerApprove)
		api.POST("/claims/:id/manager/reject", handlers.ManagerReject)

		api.GET("/coordinator/pending", handlers.PendingForCoordinator)
		api.GET("/coordinator/history", handlers.HistoryForCoordinator)
		api.GET("/manager/pending", handlers.PendingForManager)

		api.GET("/documents/:id", handlers.DownloadDocument)
		api.GET("/reports/claims.xlsx", handlers.ExportClaimsReport)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
