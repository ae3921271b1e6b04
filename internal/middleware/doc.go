// Package middleware provides the gin middleware used by the routebind
// HTTP server.
//
// # Middleware Components
//
//   - RequestID: request identifier propagation through headers and context
//   - Logging: structured request logging with status-based levels
//   - Recovery: panic recovery rendering the stack trace error page
//   - Tracing: OpenTelemetry server spans
//   - Metrics: Prometheus request counters and histograms
//
// # Usage
//
//	engine := gin.New()
//	engine.Use(
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	    middleware.Tracing(tracer),
//	    middleware.Metrics(metrics),
//	    middleware.Recovery(logger, middleware.RecoveryConfig{EnableStackTrace: true}),
//	)
//
// Handlers that resolve a parametrized route call SetRoute so that logs,
// spans and metrics carry the route path instead of the raw URL.
package middleware
