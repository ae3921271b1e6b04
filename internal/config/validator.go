package config

import (
	"fmt"
	"strings"

	"github.com/vyrodovalexey/routebind/internal/util"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Is reports whether target is util.ErrConfigInvalid.
func (e ValidationErrors) Is(target error) bool {
	return target == util.ErrConfigInvalid
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates routebind configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a configuration.
func ValidateConfig(config *Config) error {
	v := NewValidator()
	return v.Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *Config) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(config)
	v.validateSpec(&config.Spec)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateRoot(config *Config) {
	if config.APIVersion == "" {
		v.addError("apiVersion", "apiVersion is required")
	} else if !strings.HasPrefix(config.APIVersion, APIVersionPrefix) {
		v.addError("apiVersion", fmt.Sprintf("apiVersion must start with '%s'", APIVersionPrefix))
	}

	if config.Kind == "" {
		v.addError("kind", "kind is required")
	} else if config.Kind != Kind {
		v.addError("kind", fmt.Sprintf("kind must be '%s'", Kind))
	}

	if config.Metadata.Name == "" {
		v.addError("metadata.name", "name is required")
	}
}

func (v *Validator) validateSpec(spec *Spec) {
	v.validateServer(&spec.Server, "spec.server")
	v.validateObservability(&spec.Observability, "spec.observability")

	if spec.HTTPClient != nil {
		v.validateHTTPClient(spec.HTTPClient, "spec.httpClient")
	}

	if err := util.ValidateDuration(spec.Preload.Timeout.Duration()); err != nil {
		v.addError("spec.preload.timeout", err.Error())
	}

	if len(spec.Routes) == 0 {
		v.addError("spec.routes", "at least one route is required")
	}
	for i := range spec.Routes {
		v.validateRoute(&spec.Routes[i], fmt.Sprintf("spec.routes[%d]", i))
	}
}

func (v *Validator) validateServer(server *ServerConfig, path string) {
	if err := util.ValidateListenAddress(server.Address); err != nil {
		v.addError(path+".address", err.Error())
	}

	durations := map[string]Duration{
		"readTimeout":     server.ReadTimeout,
		"writeTimeout":    server.WriteTimeout,
		"idleTimeout":     server.IdleTimeout,
		"shutdownTimeout": server.ShutdownTimeout,
	}
	for _, name := range []string{"readTimeout", "writeTimeout", "idleTimeout", "shutdownTimeout"} {
		if err := util.ValidateDuration(durations[name].Duration()); err != nil {
			v.addError(path+"."+name, err.Error())
		}
	}

	if server.Basename != "" && !strings.HasPrefix(server.Basename, "/") {
		v.addError(path+".basename", "basename must start with /")
	}
}

func (v *Validator) validateObservability(obs *ObservabilityConfig, path string) {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if obs.Logging.Level != "" && !validLevels[obs.Logging.Level] {
		v.addError(path+".logging.level", fmt.Sprintf("invalid log level: %s", obs.Logging.Level))
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if obs.Logging.Format != "" && !validFormats[obs.Logging.Format] {
		v.addError(path+".logging.format", fmt.Sprintf("invalid log format: %s", obs.Logging.Format))
	}

	if obs.Metrics.Path != "" && !strings.HasPrefix(obs.Metrics.Path, "/") {
		v.addError(path+".metrics.path", "metrics path must start with /")
	}

	if obs.Tracing.SamplingRate < 0 || obs.Tracing.SamplingRate > 1 {
		v.addError(path+".tracing.samplingRate", "samplingRate must be between 0 and 1")
	}
	if obs.Tracing.Enabled && obs.Tracing.OTLPEndpoint == "" {
		v.addError(path+".tracing.otlpEndpoint", "otlpEndpoint is required when tracing is enabled")
	}
}

func (v *Validator) validateHTTPClient(client *HTTPClientConfig, path string) {
	if err := util.ValidateURL(client.BaseURL); err != nil {
		v.addError(path+".baseURL", err.Error())
	}

	if err := util.ValidateDuration(client.Timeout.Duration()); err != nil {
		v.addError(path+".timeout", err.Error())
	}

	if client.RateLimit < 0 {
		v.addError(path+".rateLimit", "rateLimit cannot be negative")
	}
	if client.Burst < 0 {
		v.addError(path+".burst", "burst cannot be negative")
	}

	if cb := client.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.Threshold < 0 {
			v.addError(path+".circuitBreaker.threshold", "threshold cannot be negative")
		}
		if err := util.ValidateDuration(cb.Timeout.Duration()); err != nil {
			v.addError(path+".circuitBreaker.timeout", err.Error())
		}
	}

	if r := client.Retry; r != nil {
		if r.MaxRetries < 0 {
			v.addError(path+".retry.maxRetries", "maxRetries cannot be negative")
		}
		if err := util.ValidateDuration(r.InitialBackoff.Duration()); err != nil {
			v.addError(path+".retry.initialBackoff", err.Error())
		}
		if err := util.ValidateDuration(r.MaxBackoff.Duration()); err != nil {
			v.addError(path+".retry.maxBackoff", err.Error())
		}
	}
}

// validateRoute validates a route and its descendants.
func (v *Validator) validateRoute(route *RouteConfig, path string) {
	if route.Path != "" {
		if err := util.ValidateRoutePattern(route.Path); err != nil {
			v.addError(path+".path", err.Error())
		}
	}

	if route.Redirect != nil {
		if err := util.ValidateNonEmpty(route.Redirect.To, "redirect.to"); err != nil {
			v.addError(path+".redirect.to", err.Error())
		} else if err := util.ValidateRoutePattern(route.Redirect.To); err != nil {
			v.addError(path+".redirect.to", err.Error())
		}
		if err := util.ValidateRedirectStatus(route.Redirect.Status); err != nil {
			v.addError(path+".redirect.status", err.Error())
		}
	}

	if route.Index != nil {
		if route.Index.Path != "" {
			v.addError(path+".index.path", "index route cannot have a path")
		}
		if len(route.Index.Children) > 0 {
			v.addError(path+".index.children", "index route cannot have children")
		}
		v.validateRoute(route.Index, path+".index")
	}

	for i := range route.Children {
		v.validateRoute(&route.Children[i], fmt.Sprintf("%s.children[%d]", path, i))
	}
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
