// Package config provides configuration types and loading for routebind.
//
// The configuration is a YAML document describing the HTTP server,
// observability, the backend API client used by preloads and the route
// tree served by the renderer.
//
// # Features
//
//   - YAML configuration file loading
//   - Environment variable substitution with ${VAR:-default} syntax
//   - Validation with one error per offending field
//   - File watching for hot-reload of the route tree
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("routebind.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//	routes := cfg.Spec.RouteTree()
//
// # File Watching
//
//	watcher, err := config.NewWatcher(path, func(cfg *config.Config) {
//	    srv.SetRoutes(cfg.Spec.RouteTree())
//	}, config.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = watcher.Start(ctx)
package config
