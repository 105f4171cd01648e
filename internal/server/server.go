// Package server exposes the rotation manager as an HTTP service:
// proxy selection, outcome reporting, statistics, health, and
// metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avproxypool/internal/health"
	"github.com/vyrodovalexey/avproxypool/internal/observability"
	"github.com/vyrodovalexey/avproxypool/internal/rotation"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// Config holds configuration for the HTTP server.
type Config struct {
	Address      string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MetricsPath  string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		MetricsPath:  "/metrics",
	}
}

// Server is the admin and selection API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	config     *Config
	logger     observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	checker    *health.Checker
	limiter    *RateLimiter

	mu      sync.RWMutex
	manager *rotation.Manager
	running bool
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithMetrics enables the metrics endpoint and request metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithTracer enables per-request tracing.
func WithTracer(tracer *observability.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithChecker mounts health and readiness endpoints.
func WithChecker(checker *health.Checker) Option {
	return func(s *Server) {
		s.checker = checker
	}
}

// WithRateLimiter enables rate limiting on the API.
func WithRateLimiter(limiter *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

// NewServer creates a new server around a rotation manager.
func NewServer(cfg *Config, manager *rotation.Manager, logger observability.Logger, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		engine:  gin.New(),
		config:  cfg,
		logger:  logger,
		manager: manager,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware wires the middleware chain in order.
func (s *Server) setupMiddleware() {
	s.engine.Use(RequestID())
	s.engine.Use(Recovery(s.logger))
	if s.tracer != nil {
		s.engine.Use(Tracing(s.tracer))
	}
	if s.metrics != nil {
		s.engine.Use(Metrics(s.metrics))
	}
	if s.limiter != nil {
		s.engine.Use(RateLimit(s.limiter))
	}
	s.engine.Use(AccessLog(s.logger))
}

// setupRoutes registers all endpoints.
func (s *Server) setupRoutes() {
	if s.checker != nil {
		s.engine.GET("/healthz", gin.WrapF(s.checker.HealthHandler()))
		s.engine.GET("/readyz", gin.WrapF(s.checker.ReadinessHandler()))
	}
	if s.metrics != nil {
		s.engine.GET(s.config.MetricsPath, gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.engine.Group("/v1")
	v1.GET("/proxy", s.getProxy)
	v1.POST("/proxy/failure", s.reportFailure)
	v1.POST("/proxy/success", s.reportSuccess)
	v1.GET("/stats", s.getStats)
}

// Manager returns the current rotation manager.
func (s *Server) Manager() *rotation.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manager
}

// SetManager swaps in a new rotation manager. Used by configuration
// reload: a reload is a fresh pool, never a partial rebuild of the
// running one.
func (s *Server) SetManager(manager *rotation.Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manager = manager
}

// Engine returns the underlying gin engine, for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// proxyResponse is the body returned by GET /v1/proxy.
type proxyResponse struct {
	Handle         int               `json:"handle"`
	URI            string            `json:"uri"`
	Proxy          map[string]string `json:"proxy"`
	TimeoutSeconds int               `json:"timeoutSeconds"`
}

// reportRequest is the body accepted by the report endpoints. Handle
// is preferred; URI is matched against the pool's formatted URIs.
type reportRequest struct {
	Handle *int   `json:"handle"`
	URI    string `json:"uri"`
}

// getProxy selects the next proxy.
func (s *Server) getProxy(c *gin.Context) {
	sel, err := s.Manager().Select()
	if err != nil {
		if errors.Is(err, rotation.ErrEmptyPool) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no proxy available"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, proxyResponse{
		Handle:         sel.Handle,
		URI:            sel.URI,
		Proxy:          sel.ProxyURLs(),
		TimeoutSeconds: int(sel.Timeout.Seconds()),
	})
}

// reportFailure records a failed request through a proxy.
func (s *Server) reportFailure(c *gin.Context) {
	s.report(c, false)
}

// reportSuccess records a successful request through a proxy.
func (s *Server) reportSuccess(c *gin.Context) {
	s.report(c, true)
}

// report dispatches a report by handle or URI. Reports that match no
// pool entry are accepted and dropped, mirroring the manager's
// silent no-op contract.
func (s *Server) report(c *gin.Context, success bool) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	mgr := s.Manager()
	switch {
	case req.Handle != nil:
		mgr.Report(rotation.Selection{Handle: *req.Handle, URI: req.URI}, success)
	case req.URI != "":
		if success {
			mgr.ReportSuccess(req.URI)
		} else {
			mgr.ReportFailure(req.URI)
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "handle or uri is required"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// getStats returns a snapshot of pool state.
func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Manager().Stats())
}

// Start starts the HTTP server. It returns once the listener is
// running; serve errors other than a clean close are logged.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("addr", s.httpServer.Addr),
	)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", observability.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	s.logger.Info("stopping HTTP server")
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
