// Package api exposes the reconciliation engine over HTTP.
//
// Routes:
//
//	POST /api/v1/validate/                  reconcile a full invoice submission
//	GET  /api/v1/validate/:invoice_number   reconcile what is known about a number
//	GET  /api/v1/health                     liveness plus dependency checks
//	GET  /metrics                           prometheus exposition
//
// Every JSON response uses the Response envelope.
package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoice-reconciliation-service/internal/metrics"
	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/pkg/errors"
	"invoice-reconciliation-service/pkg/logger"
)

const serviceName = "invoice_reconciliation"

// Reconciler is the engine surface the API serves
type Reconciler interface {
	Reconcile(ctx context.Context, inv *models.Invoice) (*models.ReconciliationResult, error)
	ReconcileByNumber(ctx context.Context, number string) (*models.ReconciliationResult, error)
}

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Option customizes a Server
type Option func(*Server)

// WithMetrics enables request metrics and the /metrics endpoint
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthCheck adds a named dependency probe to the health endpoint
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithLogger overrides the global logger
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Server is the HTTP front of the reconciliation engine
type Server struct {
	config     *Config
	engine     *gin.Engine
	reconciler Reconciler
	metrics    *metrics.Metrics
	limiter    *IPRateLimiter
	checks     map[string]HealthCheck
	logger     logger.Logger
}

// NewServer wires middleware and routes around reconciler
func NewServer(reconciler Reconciler, cfg *Config, opts ...Option) (*Server, error) {
	if reconciler == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "reconciler", nil, nil)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "server", cfg.Addr(), err)
	}
	if err := registerValidators(); err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "validator_registration", err)
	}

	s := &Server{
		config:     cfg,
		reconciler: reconciler,
		checks:     make(map[string]HealthCheck),
		logger:     logger.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("api")

	s.engine = gin.New()
	s.engine.Use(Recovery(s.logger), RequestID(), RequestLogger(s.logger))
	if s.metrics != nil {
		s.engine.Use(Metrics(s.metrics))
	}
	if len(cfg.AllowedOrigins) > 0 {
		s.engine.Use(CORS(cfg.AllowedOrigins))
	}
	s.engine.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "not_found", "route not found", "")
	})

	s.engine.GET("/", s.index)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.engine.Group("/api/v1")
	v1.GET("/health", s.health)

	validate := v1.Group("/validate")
	if cfg.RateLimit.Enabled {
		s.limiter = NewIPRateLimiter(cfg.RateLimit)
		validate.Use(s.limiter.Middleware())
	}
	validate.Use(BodyLimit(cfg.MaxBodyBytes))
	validate.POST("/", s.validateInvoice)
	validate.GET("/:invoice_number", s.validateByNumber)

	return s, nil
}

// Handler returns the routed engine
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	defer s.Close()

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", srv.Addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// Close releases background resources
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
