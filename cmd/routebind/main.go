// Package main is the entry point for routebind.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const (
	configPathEnv     = "ROUTEBIND_CONFIG_PATH"
	defaultConfigPath = "configs/routebind.yaml"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "routebind",
		Short: "Server-side route matching and rendering",
		Long: `routebind matches request URLs against a declarative route tree.

Matched locations run their preloads and are rendered, redirects are
answered with their status and unmatched URLs get a 404 page.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		matchCmd(),
		versionCmd(),
	)

	return rootCmd
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
