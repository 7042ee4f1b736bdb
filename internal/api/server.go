// Package api exposes the triage engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/middleware"
	"github.com/offline-triage-engine/internal/service"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// Analyzer is the engine surface the API needs.
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalysisRequest) *domain.AnalysisResult
	CheckDrugInteractions(medicines []string) []domain.DrugInteractionFinding
	Status() domain.EngineStatus
}

// Server represents the HTTP server
type Server struct {
	cfg     domain.ServerConfig
	version string
	engine  Analyzer
	store   domain.HealthRecordStore
	logger  *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server instance. store may be nil, in which
// case results are not persisted and the record routes report it.
func NewServer(cfg domain.ServerConfig, version string, engine Analyzer, store domain.HealthRecordStore, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.AccessLog(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	s := &Server{
		cfg:     cfg,
		version: version,
		engine:  engine,
		store:   store,
		logger:  logger,
		router:  router,
	}

	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
	{
		v1.GET("/status", s.handleStatus)
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/interactions", s.handleInteractions)
		v1.GET("/records", s.handleListRecords)
		v1.GET("/records/:id", s.handleGetRecord)
	}
}

// writeError renders err as a TriageError body.
func (s *Server) writeError(c *gin.Context, status int, err error) {
	var te *domain.TriageError
	if !errors.As(err, &te) {
		te = domain.WrapTriageError(domain.ErrorCode(err), publicMessage(status), err)
	}
	te.WithRequestID(middleware.GetCorrelationID(c))
	c.AbortWithStatusJSON(status, gin.H{"error": te})
}

func publicMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusNotFound:
		return "not found"
	case http.StatusServiceUnavailable:
		return "service unavailable"
	default:
		return "internal server error"
	}
}
