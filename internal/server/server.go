// Package server provides the routebind HTTP server.
//
// Every request that is not a health or metrics endpoint is matched
// against the route tree. The outcome decides the response: redirects are
// sent with their status, unmatched URLs get a 404 page, routing failures
// get the stack trace error page, and matched locations run their
// preloads before being handed to the Renderer.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/routebind/internal/health"
	"github.com/vyrodovalexey/routebind/internal/httpclient"
	"github.com/vyrodovalexey/routebind/internal/middleware"
	"github.com/vyrodovalexey/routebind/internal/observability"
	"github.com/vyrodovalexey/routebind/internal/preload"
	"github.com/vyrodovalexey/routebind/internal/router"
	"github.com/vyrodovalexey/routebind/internal/stacktrace"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions
var ginModeOnce sync.Once

// Config holds configuration for the HTTP server.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	// Basename is stripped from request paths before matching and
	// prepended to redirect targets.
	Basename string
	// MetricsPath is where metrics are served when a metrics registry is
	// configured.
	MetricsPath string
	// StackTrace enables the stack trace error page. Off by default; when
	// off, failures answer with a generic JSON error body.
	StackTrace  bool
	PageOptions stacktrace.Options
	Version     string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Address:         ":8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		MaxHeaderBytes:  1 << 20,
		MetricsPath:     "/metrics",
	}
}

// Server serves the route tree over HTTP.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	config     Config
	logger     observability.Logger
	tracer     trace.Tracer
	metrics    *observability.Metrics
	matcher    *router.Matcher
	runner     *preload.Runner
	client     *httpclient.Client
	renderer   Renderer
	checker    *health.Checker
	routes     atomic.Pointer[[]*router.Route]
	mu         sync.RWMutex
	running    bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTracer sets the tracer used for server spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithMetrics enables request metrics and the metrics endpoint.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithMatcher sets the route matcher.
func WithMatcher(matcher *router.Matcher) Option {
	return func(s *Server) {
		s.matcher = matcher
	}
}

// WithPreloadRunner sets the runner executing route preloads.
func WithPreloadRunner(runner *preload.Runner) Option {
	return func(s *Server) {
		s.runner = runner
	}
}

// WithHTTPClient sets the backend client handed to preloads.
func WithHTTPClient(client *httpclient.Client) Option {
	return func(s *Server) {
		s.client = client
	}
}

// WithRenderer sets the renderer for matched locations.
func WithRenderer(renderer Renderer) Option {
	return func(s *Server) {
		s.renderer = renderer
	}
}

// WithHealthChecker sets the health checker. A routes check is always
// registered on it.
func WithHealthChecker(checker *health.Checker) Option {
	return func(s *Server) {
		s.checker = checker
	}
}

// New creates a server for routes.
func New(config Config, routes []*router.Route, opts ...Option) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		config:   config,
		logger:   observability.NopLogger(),
		renderer: JSONRenderer{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.matcher == nil {
		s.matcher = router.NewMatcher(router.WithLogger(s.logger))
	}
	if s.runner == nil {
		s.runner = preload.NewRunner(nil, preload.WithLogger(s.logger))
	}
	if s.checker == nil {
		s.checker = health.NewChecker(config.Version)
	}
	if s.config.PageOptions.Logger == nil {
		s.config.PageOptions.Logger = s.logger
	}

	s.SetRoutes(routes)
	s.checker.RegisterCheck("routes", health.RoutesLoadedCheck(s.RouteCount))
	if s.client != nil {
		s.checker.RegisterCheck("backend", health.CircuitBreakerCheck(s.client.BreakerState))
	}

	s.engine = s.newEngine()
	return s
}

func (s *Server) newEngine() *gin.Engine {
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.TracingWithConfig(middleware.TracingConfig{
			Tracer:    s.tracer,
			SkipPaths: []string{s.config.MetricsPath},
		}),
	)
	if s.metrics != nil {
		engine.Use(middleware.Metrics(s.metrics))
	}
	engine.Use(middleware.Recovery(s.logger, middleware.RecoveryConfig{
		EnableStackTrace: s.config.StackTrace,
		PageOptions:      s.config.PageOptions,
	}))

	s.checker.RegisterRoutes(engine)
	if s.metrics != nil && s.config.MetricsPath != "" {
		engine.GET(s.config.MetricsPath, gin.WrapH(s.metrics.Handler()))
	}

	engine.NoRoute(s.handleRender)
	return engine
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetRoutes atomically replaces the route tree. In-flight requests keep
// the tree they started with.
func (s *Server) SetRoutes(routes []*router.Route) {
	s.routes.Store(&routes)
	s.logger.Info("route tree updated",
		observability.Int("routes", len(routes)),
	)
}

// Routes returns the current route tree.
func (s *Server) Routes() []*router.Route {
	if p := s.routes.Load(); p != nil {
		return *p
	}
	return nil
}

// RouteCount returns the number of top-level routes.
func (s *Server) RouteCount() int {
	return len(s.Routes())
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Stop. It returns nil after a graceful stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("server already running")
	}

	s.httpServer = &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           s.engine,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		MaxHeaderBytes:    s.config.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.running = true
	httpServer := s.httpServer
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", ln.Addr().String()),
		observability.String("basename", s.config.Basename),
		observability.Duration("read_timeout", s.config.ReadTimeout),
		observability.Duration("write_timeout", s.config.WriteTimeout),
	)

	err := httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")

	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
