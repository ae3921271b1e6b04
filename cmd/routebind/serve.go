package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/routebind/internal/config"
	"github.com/vyrodovalexey/routebind/internal/observability"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		noWatch    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured route tree over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath, logLevel, !noWatch)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", getEnvOrDefault(configPathEnv, defaultConfigPath),
		"Path to configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", getEnvOrDefault("ROUTEBIND_LOG_LEVEL", ""),
		"Log level overriding the configuration (debug, info, warn, error)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false,
		"Do not reload routes when the configuration file changes or on SIGHUP")

	return cmd
}

// runServe serves until ctx is done.
func runServe(ctx context.Context, configPath, logLevel string, watch bool) error {
	resolved, err := config.ResolveConfigPath(configPath)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(resolved)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := initLogger(cfg.Spec.Observability.Logging, logLevel)
	if err != nil {
		return err
	}

	logger.Info("starting routebind",
		observability.String("version", version),
		observability.String("config", resolved),
	)
	logger.Info("configuration loaded",
		observability.String("name", cfg.Metadata.Name),
		observability.Int("routes", len(cfg.Spec.Routes)),
		observability.Bool("backend", cfg.Spec.HTTPClient != nil),
		observability.Bool("tracing", cfg.Spec.Observability.Tracing.Enabled),
	)

	app, err := initApplication(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return err
	}

	var watcher *config.Watcher
	if watch {
		watcher = startConfigWatcher(ctx, app, resolved, logger)
	}
	if watcher != nil {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go reloadOnSignal(ctx, watcher, hup, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start(ctx)
	}()

	select {
	case err = <-errCh:
		if err != nil {
			logger.Error("server failed", observability.Error(err))
		}
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	app.shutdown(watcher, logger)
	return err
}
