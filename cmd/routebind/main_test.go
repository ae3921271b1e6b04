package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/routebind/internal/config"
	"github.com/vyrodovalexey/routebind/internal/httpclient"
	"github.com/vyrodovalexey/routebind/internal/location"
	"github.com/vyrodovalexey/routebind/internal/observability"
	"github.com/vyrodovalexey/routebind/internal/preload"
	"github.com/vyrodovalexey/routebind/internal/router"
	"github.com/vyrodovalexey/routebind/internal/util"
)

const routesYAML = `
apiVersion: routebind.io/v1
kind: RouteBind
metadata:
  name: cli-test
spec:
  observability:
    logging:
      level: error
      output: stderr
  routes:
    - path: /
      name: app
      index:
        name: home
      children:
        - path: user/:id
          name: user
        - path: files/*
          name: files
        - path: old-user/:id
          redirect:
            to: /user/:id
            status: 301
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routebind.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name:     "short",
			args:     []string{"version", "--short"},
			contains: []string{version},
		},
		{
			name: "full",
			args: []string{"version"},
			contains: []string{
				"routebind version " + version,
				"Build time: " + buildTime,
				"Git commit: " + gitCommit,
				runtime.GOOS + "/" + runtime.GOARCH,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestMatchCmd(t *testing.T) {
	t.Parallel()

	configPath := writeTestConfig(t, routesYAML)

	tests := []struct {
		name     string
		url      string
		contains []string
	}{
		{
			name:     "index route",
			url:      "/",
			contains: []string{"matched /", "routes: app > home"},
		},
		{
			name:     "params are printed in order",
			url:      "/user/42",
			contains: []string{"matched /user/:id", "routes: app > user", "id=42"},
		},
		{
			name:     "splat",
			url:      "/files/a/b.txt",
			contains: []string{"matched /files/*", "splat=a/b.txt"},
		},
		{
			name:     "redirect",
			url:      "/old-user/7?tab=posts",
			contains: []string{"redirect 301 /user/7?tab=posts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := execute(t, "match", "--config", configPath, tt.url)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestMatchCmd_SampleConfig(t *testing.T) {
	t.Parallel()

	sample := filepath.Join("..", "..", "configs", "routebind.yaml")

	out, err := execute(t, "match", "--config", sample, "/user/7/post/3")
	require.NoError(t, err)
	assert.Contains(t, out, "matched /user/:id/post/:postId")
	assert.Contains(t, out, "routes: app > user > post")
	assert.Contains(t, out, "id=7")
	assert.Contains(t, out, "postId=3")

	out, err = execute(t, "match", "--config", sample, "/profile")
	require.NoError(t, err)
	assert.Contains(t, out, "redirect 302 /user/me?from=profile")
}

func TestMatchCmd_JSON(t *testing.T) {
	t.Parallel()

	configPath := writeTestConfig(t, routesYAML)

	out, err := execute(t, "match", "-c", configPath, "-o", "json", "/user/42")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "matched", got["outcome"])
	assert.Equal(t, "/user/:id", got["routePath"])
	assert.Equal(t, map[string]any{"id": "42"}, got["params"])
}

func TestMatchCmd_Errors(t *testing.T) {
	t.Parallel()

	configPath := writeTestConfig(t, routesYAML)

	t.Run("no route matched", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "match", "--config", configPath, "/nowhere")
		require.Error(t, err)

		var notFound *router.NoRouteMatchedError
		require.ErrorAs(t, err, &notFound)
		assert.ErrorIs(t, err, util.ErrNotFound)
		assert.Contains(t, err.Error(), "/nowhere")
	})

	t.Run("missing config", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "match", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "/")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config file not found")
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		path := writeTestConfig(t, "apiVersion: routebind.io/v1\nkind: RouteBind\nspec:\n  routes: []\n")
		_, err := execute(t, "match", "--config", path, "/")
		require.Error(t, err)
		assert.ErrorIs(t, err, util.ErrConfigInvalid)
	})

	t.Run("unsupported output", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "match", "--config", configPath, "-o", "xml", "/")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported output format")
	})

	t.Run("missing url", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "match", "--config", configPath)
		require.Error(t, err)
	})
}

func TestFetchFromBackend(t *testing.T) {
	t.Parallel()

	var gotURI string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"ada"}`))
	}))
	defer backend.Close()

	client, err := httpclient.New(httpclient.Config{BaseURL: backend.URL}, observability.NopLogger())
	require.NoError(t, err)

	tests := []struct {
		name    string
		route   *router.Route
		wantKey string
	}{
		{name: "named route", route: &router.Route{Name: "user", Path: "user/:id"}, wantKey: "user"},
		{name: "unnamed route", route: &router.Route{Path: "user/:id"}, wantKey: "user/:id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := &preload.Context{
				Route:    tt.route,
				Location: location.MustParse("/user/1?tab=posts"),
				HTTP:     client,
				Data:     preload.NewData(),
			}

			require.NoError(t, fetchFromBackend(context.Background(), pc))
			assert.Equal(t, "/user/1?tab=posts", gotURI)

			got, ok := pc.Data.Get(tt.wantKey)
			require.True(t, ok)
			assert.Equal(t, map[string]any{"name": "ada"}, got)
		})
	}
}

func TestFetchFromBackend_NoClient(t *testing.T) {
	t.Parallel()

	pc := &preload.Context{
		Route:    &router.Route{Name: "user"},
		Location: location.MustParse("/user/1"),
		Data:     preload.NewData(),
	}
	assert.ErrorIs(t, fetchFromBackend(context.Background(), pc), errNoBackend)
}

func TestBuiltinPreloads(t *testing.T) {
	t.Parallel()

	_, ok := builtinPreloads().Lookup(BackendPreload)
	assert.True(t, ok)
}

func TestServerConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Spec.Server.Address = "127.0.0.1:9000"
	cfg.Spec.Server.Basename = "/app"
	cfg.Spec.Server.ShutdownTimeout = config.Duration(5 * time.Second)
	cfg.Spec.StackTrace = config.StackTraceConfig{Enabled: true, Title: "Oops"}

	sc := serverConfig(cfg)
	assert.Equal(t, "127.0.0.1:9000", sc.Address)
	assert.Equal(t, "/app", sc.Basename)
	assert.Equal(t, 5*time.Second, sc.ShutdownTimeout)
	assert.Equal(t, config.DefaultReadTimeout, sc.ReadTimeout)
	assert.Equal(t, config.DefaultMetricsPath, sc.MetricsPath)
	assert.True(t, sc.StackTrace)
	assert.Equal(t, "Oops", sc.PageOptions.Title)
	assert.Equal(t, version, sc.Version)
}

func TestHTTPClientConfig(t *testing.T) {
	t.Parallel()

	hc := &config.HTTPClientConfig{
		Name:      "api",
		BaseURL:   "http://backend:8080",
		Timeout:   config.Duration(2 * time.Second),
		RateLimit: 10,
		Burst:     20,
		CircuitBreaker: &config.CircuitBreakerConfig{
			Enabled:   true,
			Threshold: 3,
			Timeout:   config.Duration(time.Minute),
		},
		Retry:   &config.RetryConfig{MaxRetries: 2, InitialBackoff: config.Duration(10 * time.Millisecond)},
		Headers: map[string]string{"X-Team": "web"},
	}

	c := httpClientConfig(hc)
	assert.Equal(t, "api", c.Name)
	assert.Equal(t, "http://backend:8080", c.BaseURL)
	assert.Equal(t, 2*time.Second, c.Timeout)
	assert.InDelta(t, 10.0, c.RateLimit, 0.001)
	assert.Equal(t, 20, c.Burst)
	assert.Equal(t, httpclient.BreakerConfig{Enabled: true, Threshold: 3, Timeout: time.Minute}, c.CircuitBreaker)
	assert.Equal(t, 2, c.Retry.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, c.Retry.InitialBackoff)
	assert.Equal(t, "web", c.Headers["X-Team"])
}

func TestInitApplication(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"` + strings.TrimPrefix(r.URL.Path, "/user/") + `"}`))
	}))
	defer backend.Close()

	cfg, err := config.LoadConfigFromReader(strings.NewReader(`
apiVersion: routebind.io/v1
kind: RouteBind
metadata:
  name: app-test
spec:
  observability:
    metrics:
      enabled: true
      namespace: apptest
  httpClient:
    baseURL: ` + backend.URL + `
    circuitBreaker:
      enabled: true
      threshold: 5
      timeout: 30s
  routes:
    - path: /
      children:
        - path: user/:id
          name: user
          preload: backend
`))
	require.NoError(t, err)
	require.NoError(t, config.ValidateConfig(cfg))

	app, err := initApplication(cfg, observability.NopLogger())
	require.NoError(t, err)
	require.NotNil(t, app.metrics)
	require.NotNil(t, app.client)

	handler := app.server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/42", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/user/:id", body["routePath"])
	assert.Equal(t, map[string]any{"user": map[string]any{"id": "42"}}, body["data"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "apptest_requests_total")

	require.NoError(t, app.tracer.Shutdown(context.Background()))
}

func TestRunServe(t *testing.T) {
	t.Parallel()

	configPath := writeTestConfig(t, strings.Replace(routesYAML, "spec:\n",
		"spec:\n  server:\n    address: 127.0.0.1:0\n", 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, configPath, "error", true)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not return after cancellation")
	}
}

func TestRunServe_InvalidConfig(t *testing.T) {
	t.Parallel()

	err := runServe(context.Background(), writeTestConfig(t, "kind: Other\n"), "", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrConfigInvalid)
}

func TestReloadOnSignal(t *testing.T) {
	t.Parallel()

	configPath := writeTestConfig(t, routesYAML)

	reloaded := make(chan *config.Config, 1)
	watcher, err := config.NewWatcher(configPath, func(cfg *config.Config) { reloaded <- cfg })
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		reloadOnSignal(ctx, watcher, sig, observability.NopLogger())
		close(done)
	}()

	renamed := strings.Replace(routesYAML, "name: cli-test", "name: cli-reloaded", 1)
	require.NoError(t, os.WriteFile(configPath, []byte(renamed), 0o644))
	sig <- syscall.SIGHUP

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "cli-reloaded", cfg.Metadata.Name)
		assert.Same(t, cfg, watcher.Current())
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded on SIGHUP")
	}

	// A broken file keeps the previous configuration.
	require.NoError(t, os.WriteFile(configPath, []byte("kind: Other\n"), 0o644))
	sig <- syscall.SIGHUP

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reloadOnSignal did not return after cancellation")
	}
	assert.Equal(t, "cli-reloaded", watcher.Current().Metadata.Name)
	assert.Empty(t, reloaded)
}
