package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/routebind/internal/util"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Spec.Routes = []RouteConfig{
		{
			Path:  "/",
			Index: &RouteConfig{View: "home"},
			Children: []RouteConfig{
				{Path: "user/:id"},
				{Path: "old", Redirect: &RedirectConfig{To: "/new"}},
			},
		},
	}
	return cfg
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:     "wrong api version",
			mutate:   func(c *Config) { c.APIVersion = "gateway.example.io/v1" },
			wantPath: "apiVersion",
		},
		{
			name:     "missing kind",
			mutate:   func(c *Config) { c.Kind = "" },
			wantPath: "kind",
		},
		{
			name:     "missing name",
			mutate:   func(c *Config) { c.Metadata.Name = "" },
			wantPath: "metadata.name",
		},
		{
			name:     "bad address",
			mutate:   func(c *Config) { c.Spec.Server.Address = "8080" },
			wantPath: "spec.server.address",
		},
		{
			name:     "negative timeout",
			mutate:   func(c *Config) { c.Spec.Server.WriteTimeout = Duration(-time.Second) },
			wantPath: "spec.server.writeTimeout",
		},
		{
			name:     "relative basename",
			mutate:   func(c *Config) { c.Spec.Server.Basename = "app" },
			wantPath: "spec.server.basename",
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Spec.Observability.Logging.Level = "verbose" },
			wantPath: "spec.observability.logging.level",
		},
		{
			name:     "bad log format",
			mutate:   func(c *Config) { c.Spec.Observability.Logging.Format = "xml" },
			wantPath: "spec.observability.logging.format",
		},
		{
			name:     "relative metrics path",
			mutate:   func(c *Config) { c.Spec.Observability.Metrics.Path = "metrics" },
			wantPath: "spec.observability.metrics.path",
		},
		{
			name:     "sampling rate out of range",
			mutate:   func(c *Config) { c.Spec.Observability.Tracing.SamplingRate = 1.5 },
			wantPath: "spec.observability.tracing.samplingRate",
		},
		{
			name:     "tracing without endpoint",
			mutate:   func(c *Config) { c.Spec.Observability.Tracing.Enabled = true },
			wantPath: "spec.observability.tracing.otlpEndpoint",
		},
		{
			name:     "client without base url",
			mutate:   func(c *Config) { c.Spec.HTTPClient = &HTTPClientConfig{} },
			wantPath: "spec.httpClient.baseURL",
		},
		{
			name: "client negative rate",
			mutate: func(c *Config) {
				c.Spec.HTTPClient = &HTTPClientConfig{BaseURL: "http://api", RateLimit: -1}
			},
			wantPath: "spec.httpClient.rateLimit",
		},
		{
			name: "client negative threshold",
			mutate: func(c *Config) {
				c.Spec.HTTPClient = &HTTPClientConfig{
					BaseURL:        "http://api",
					CircuitBreaker: &CircuitBreakerConfig{Enabled: true, Threshold: -1},
				}
			},
			wantPath: "spec.httpClient.circuitBreaker.threshold",
		},
		{
			name: "client negative retries",
			mutate: func(c *Config) {
				c.Spec.HTTPClient = &HTTPClientConfig{
					BaseURL: "http://api",
					Retry:   &RetryConfig{MaxRetries: -1},
				}
			},
			wantPath: "spec.httpClient.retry.maxRetries",
		},
		{
			name:     "no routes",
			mutate:   func(c *Config) { c.Spec.Routes = nil },
			wantPath: "spec.routes",
		},
		{
			name:     "unbalanced optional group",
			mutate:   func(c *Config) { c.Spec.Routes[0].Children[0].Path = "user(/:id" },
			wantPath: "spec.routes[0].children[0].path",
		},
		{
			name:     "empty param name",
			mutate:   func(c *Config) { c.Spec.Routes[0].Children[0].Path = "user/:" },
			wantPath: "spec.routes[0].children[0].path",
		},
		{
			name:     "redirect without target",
			mutate:   func(c *Config) { c.Spec.Routes[0].Children[1].Redirect.To = "" },
			wantPath: "spec.routes[0].children[1].redirect.to",
		},
		{
			name:     "redirect status out of range",
			mutate:   func(c *Config) { c.Spec.Routes[0].Children[1].Redirect.Status = 200 },
			wantPath: "spec.routes[0].children[1].redirect.status",
		},
		{
			name:     "index with path",
			mutate:   func(c *Config) { c.Spec.Routes[0].Index.Path = "home" },
			wantPath: "spec.routes[0].index.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantPath == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrConfigInvalid)

			var errs ValidationErrors
			require.ErrorAs(t, err, &errs)
			paths := make([]string, 0, len(errs))
			for _, e := range errs {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.wantPath)
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	err := ValidateConfig(nil)
	require.Error(t, err)
	assert.Equal(t, "configuration is nil", err.Error())
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
	assert.False(t, ValidationErrors{}.HasErrors())

	one := ValidationErrors{{Path: "kind", Message: "kind is required"}}
	assert.Equal(t, "kind: kind is required", one.Error())

	two := ValidationErrors{
		{Path: "kind", Message: "kind is required"},
		{Message: "configuration is nil"},
	}
	assert.Equal(t,
		"2 validation errors:\n  1. kind: kind is required\n  2. configuration is nil\n",
		two.Error())
}
