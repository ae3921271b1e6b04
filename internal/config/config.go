package config

import (
	"net/url"
	"time"

	"github.com/vyrodovalexey/routebind/internal/router"
)

// Expected document identifiers.
const (
	APIVersionPrefix  = "routebind.io/"
	DefaultAPIVersion = APIVersionPrefix + "v1"
	Kind              = "RouteBind"
)

// Default values.
const (
	DefaultAddress         = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMetricsPath     = "/metrics"
	DefaultPreloadTimeout  = 10 * time.Second
	DefaultServiceName     = "routebind"
)

// Config is the root configuration document.
type Config struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"`
	Kind       string   `yaml:"kind" json:"kind"`
	Metadata   Metadata `yaml:"metadata" json:"metadata"`
	Spec       Spec     `yaml:"spec" json:"spec"`
}

// Metadata identifies the deployment.
type Metadata struct {
	Name   string            `yaml:"name" json:"name"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Spec holds the runtime configuration.
type Spec struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	HTTPClient    *HTTPClientConfig   `yaml:"httpClient,omitempty" json:"httpClient,omitempty"`
	Preload       PreloadConfig       `yaml:"preload" json:"preload"`
	StackTrace    StackTraceConfig    `yaml:"stackTrace" json:"stackTrace"`
	Routes        []RouteConfig       `yaml:"routes" json:"routes"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address         string   `yaml:"address" json:"address"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout     Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
	// Basename is stripped from request paths before matching and
	// prepended to redirect targets.
	Basename string `yaml:"basename,omitempty" json:"basename,omitempty"`
}

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Path      string `yaml:"path,omitempty" json:"path,omitempty"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
}

// HTTPClientConfig configures the backend client handed to preloads.
type HTTPClientConfig struct {
	Name           string                `yaml:"name,omitempty" json:"name,omitempty"`
	BaseURL        string                `yaml:"baseURL" json:"baseURL"`
	Timeout        Duration              `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	RateLimit      float64               `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	Burst          int                   `yaml:"burst,omitempty" json:"burst,omitempty"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
	Retry          *RetryConfig          `yaml:"retry,omitempty" json:"retry,omitempty"`
	Headers        map[string]string     `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// CircuitBreakerConfig configures the backend circuit breaker.
type CircuitBreakerConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Threshold int      `yaml:"threshold" json:"threshold"`
	Timeout   Duration `yaml:"timeout" json:"timeout"`
}

// RetryConfig configures retries of idempotent backend requests.
type RetryConfig struct {
	MaxRetries     int      `yaml:"maxRetries" json:"maxRetries"`
	InitialBackoff Duration `yaml:"initialBackoff,omitempty" json:"initialBackoff,omitempty"`
	MaxBackoff     Duration `yaml:"maxBackoff,omitempty" json:"maxBackoff,omitempty"`
}

// PreloadConfig configures the preload runner.
type PreloadConfig struct {
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// StackTraceConfig configures the error page shown for failed renders.
type StackTraceConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Title      string `yaml:"title,omitempty" json:"title,omitempty"`
	FontFamily string `yaml:"fontFamily,omitempty" json:"fontFamily,omitempty"`
	FontSize   string `yaml:"fontSize,omitempty" json:"fontSize,omitempty"`
}

// RouteConfig is one node of the route tree.
type RouteConfig struct {
	Name            string          `yaml:"name,omitempty" json:"name,omitempty"`
	Path            string          `yaml:"path,omitempty" json:"path,omitempty"`
	Index           *RouteConfig    `yaml:"index,omitempty" json:"index,omitempty"`
	Redirect        *RedirectConfig `yaml:"redirect,omitempty" json:"redirect,omitempty"`
	Preload         string          `yaml:"preload,omitempty" json:"preload,omitempty"`
	PreloadBlocking bool            `yaml:"preloadBlocking,omitempty" json:"preloadBlocking,omitempty"`
	// View is handed to the renderer untouched.
	View     string        `yaml:"view,omitempty" json:"view,omitempty"`
	Children []RouteConfig `yaml:"children,omitempty" json:"children,omitempty"`
}

// RedirectConfig declares a redirect.
type RedirectConfig struct {
	To     string            `yaml:"to" json:"to"`
	Status int               `yaml:"status,omitempty" json:"status,omitempty"`
	Query  map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
}

// DefaultConfig returns a configuration with default values and no
// routes.
func DefaultConfig() *Config {
	return &Config{
		APIVersion: DefaultAPIVersion,
		Kind:       Kind,
		Metadata:   Metadata{Name: DefaultServiceName},
		Spec: Spec{
			Server: ServerConfig{
				Address:         DefaultAddress,
				ReadTimeout:     Duration(DefaultReadTimeout),
				WriteTimeout:    Duration(DefaultWriteTimeout),
				IdleTimeout:     Duration(DefaultIdleTimeout),
				ShutdownTimeout: Duration(DefaultShutdownTimeout),
			},
			Observability: ObservabilityConfig{
				Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
				Metrics: MetricsConfig{Enabled: true, Path: DefaultMetricsPath},
				Tracing: TracingConfig{ServiceName: DefaultServiceName, SamplingRate: 1.0},
			},
			Preload:    PreloadConfig{Timeout: Duration(DefaultPreloadTimeout)},
		},
	}
}

// ApplyDefaults fills unset fields with the values of DefaultConfig.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()

	if c.APIVersion == "" {
		c.APIVersion = def.APIVersion
	}
	if c.Kind == "" {
		c.Kind = def.Kind
	}
	if c.Metadata.Name == "" {
		c.Metadata.Name = def.Metadata.Name
	}

	s, d := &c.Spec.Server, def.Spec.Server
	if s.Address == "" {
		s.Address = d.Address
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = d.ReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = d.WriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = d.IdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = d.ShutdownTimeout
	}

	o, od := &c.Spec.Observability, def.Spec.Observability
	if o.Logging.Level == "" {
		o.Logging.Level = od.Logging.Level
	}
	if o.Logging.Format == "" {
		o.Logging.Format = od.Logging.Format
	}
	if o.Logging.Output == "" {
		o.Logging.Output = od.Logging.Output
	}
	if o.Metrics.Path == "" {
		o.Metrics.Path = od.Metrics.Path
	}
	if o.Tracing.ServiceName == "" {
		o.Tracing.ServiceName = od.Tracing.ServiceName
	}

	if c.Spec.Preload.Timeout == 0 {
		c.Spec.Preload.Timeout = def.Spec.Preload.Timeout
	}
}

// RouteTree converts the configured routes into router routes.
func (s *Spec) RouteTree() []*router.Route {
	routes := make([]*router.Route, 0, len(s.Routes))
	for i := range s.Routes {
		routes = append(routes, s.Routes[i].ToRoute())
	}
	return routes
}

// ToRoute converts rc and its descendants into a router route.
func (rc *RouteConfig) ToRoute() *router.Route {
	route := &router.Route{
		Name:            rc.Name,
		Path:            rc.Path,
		Preload:         rc.Preload,
		PreloadBlocking: rc.PreloadBlocking,
	}
	if rc.View != "" {
		route.View = rc.View
	}
	if rc.Index != nil {
		route.Index = rc.Index.ToRoute()
	}
	if rc.Redirect != nil {
		route.Redirect = &router.RouteRedirect{
			To:     rc.Redirect.To,
			Status: rc.Redirect.Status,
		}
		if len(rc.Redirect.Query) > 0 {
			q := make(url.Values, len(rc.Redirect.Query))
			for k, v := range rc.Redirect.Query {
				q.Set(k, v)
			}
			route.Redirect.Query = q
		}
	}
	if len(rc.Children) > 0 {
		route.Children = make([]*router.Route, 0, len(rc.Children))
		for i := range rc.Children {
			route.Children = append(route.Children, rc.Children[i].ToRoute())
		}
	}
	return route
}
