package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vyrodovalexey/routebind/internal/config"
	"github.com/vyrodovalexey/routebind/internal/health"
	"github.com/vyrodovalexey/routebind/internal/httpclient"
	"github.com/vyrodovalexey/routebind/internal/observability"
	"github.com/vyrodovalexey/routebind/internal/preload"
	"github.com/vyrodovalexey/routebind/internal/retry"
	"github.com/vyrodovalexey/routebind/internal/router"
	"github.com/vyrodovalexey/routebind/internal/server"
	"github.com/vyrodovalexey/routebind/internal/stacktrace"
)

// application holds all application components.
type application struct {
	server  *server.Server
	metrics *observability.Metrics
	tracer  *observability.Tracer
	client  *httpclient.Client
	config  *config.Config
}

// initLogger initializes the logger from the logging configuration.
func initLogger(cfg config.LoggingConfig, levelOverride string) (observability.Logger, error) {
	level := cfg.Level
	if levelOverride != "" {
		level = levelOverride
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: cfg.Format,
		Output: cfg.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	observability.SetGlobalLogger(logger)
	return logger, nil
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	tracer, err := initTracer(cfg)
	if err != nil {
		return nil, err
	}

	var (
		metrics   *observability.Metrics
		reg       prometheus.Registerer
		namespace = observability.DefaultNamespace
	)
	if cfg.Spec.Observability.Metrics.Enabled {
		if ns := cfg.Spec.Observability.Metrics.Namespace; ns != "" {
			namespace = ns
		}
		metrics = observability.NewMetrics(namespace)
		metrics.SetBuildInfo(version, gitCommit, buildTime)
		reg = metrics.Registry()
	}

	var client *httpclient.Client
	if hc := cfg.Spec.HTTPClient; hc != nil {
		client, err = httpclient.New(httpClientConfig(hc), logger,
			httpclient.WithTracer(tracer.Tracer()),
			httpclient.WithMetrics(namespace, reg),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create backend client: %w", err)
		}
	}

	matcher := router.NewMatcher(
		router.WithLogger(logger),
		router.WithTracer(tracer.Tracer()),
		router.WithMetrics(namespace, reg),
	)

	runner := preload.NewRunner(builtinPreloads(),
		preload.WithLogger(logger),
		preload.WithTracer(tracer.Tracer()),
		preload.WithTimeout(cfg.Spec.Preload.Timeout.Duration()),
		preload.WithMetrics(namespace, reg),
	)

	checker := health.NewChecker(version, health.WithMetrics(namespace, reg))

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithTracer(tracer.Tracer()),
		server.WithMatcher(matcher),
		server.WithPreloadRunner(runner),
		server.WithHealthChecker(checker),
	}
	if metrics != nil {
		opts = append(opts, server.WithMetrics(metrics))
	}
	if client != nil {
		opts = append(opts, server.WithHTTPClient(client))
	}

	srv := server.New(serverConfig(cfg), cfg.Spec.RouteTree(), opts...)

	return &application{
		server:  srv,
		metrics: metrics,
		tracer:  tracer,
		client:  client,
		config:  cfg,
	}, nil
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config) (*observability.Tracer, error) {
	tc := cfg.Spec.Observability.Tracing
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:    tc.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   tc.OTLPEndpoint,
		SamplingRate:   tc.SamplingRate,
		Enabled:        tc.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	return tracer, nil
}

func serverConfig(cfg *config.Config) server.Config {
	s := cfg.Spec.Server
	sc := server.DefaultConfig()
	sc.Address = s.Address
	sc.ReadTimeout = s.ReadTimeout.Duration()
	sc.WriteTimeout = s.WriteTimeout.Duration()
	sc.IdleTimeout = s.IdleTimeout.Duration()
	sc.ShutdownTimeout = s.ShutdownTimeout.Duration()
	sc.Basename = s.Basename
	sc.MetricsPath = cfg.Spec.Observability.Metrics.Path
	sc.StackTrace = cfg.Spec.StackTrace.Enabled
	sc.PageOptions = stacktrace.Options{
		Title:      cfg.Spec.StackTrace.Title,
		FontFamily: cfg.Spec.StackTrace.FontFamily,
		FontSize:   cfg.Spec.StackTrace.FontSize,
	}
	sc.Version = version
	return sc
}

func httpClientConfig(hc *config.HTTPClientConfig) httpclient.Config {
	c := httpclient.Config{
		Name:      hc.Name,
		BaseURL:   hc.BaseURL,
		Timeout:   hc.Timeout.Duration(),
		RateLimit: hc.RateLimit,
		Burst:     hc.Burst,
		Headers:   hc.Headers,
	}
	if cb := hc.CircuitBreaker; cb != nil {
		c.CircuitBreaker = httpclient.BreakerConfig{
			Enabled:   cb.Enabled,
			Threshold: cb.Threshold,
			Timeout:   cb.Timeout.Duration(),
		}
	}
	if r := hc.Retry; r != nil {
		c.Retry = retry.Config{
			MaxRetries:     r.MaxRetries,
			InitialBackoff: r.InitialBackoff.Duration(),
			MaxBackoff:     r.MaxBackoff.Duration(),
			JitterFactor:   retry.DefaultJitterFactor,
		}
	}
	return c
}

// startConfigWatcher watches the configuration file and swaps the route
// tree on every valid change.
func startConfigWatcher(
	ctx context.Context,
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		app.server.SetRoutes(newCfg.Spec.RouteTree())
	}, config.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Error("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}

	return watcher
}

// reloadOnSignal reloads the watched configuration each time sig delivers,
// until ctx is done.
func reloadOnSignal(ctx context.Context, watcher *config.Watcher, sig <-chan os.Signal, logger observability.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sig:
			if err := watcher.Reload(); err != nil {
				logger.Error("configuration reload failed, keeping previous routes",
					observability.String("signal", s.String()),
					observability.Error(err),
				)
				continue
			}
			cfg := watcher.Current()
			logger.Info("configuration reloaded",
				observability.String("signal", s.String()),
				observability.String("name", cfg.Metadata.Name),
				observability.Int("routes", len(cfg.Spec.Routes)),
			)
		}
	}
}

// shutdown stops the server and flushes the tracer.
func (app *application) shutdown(watcher *config.Watcher, logger observability.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("routebind stopped")
	_ = logger.Sync()
}
