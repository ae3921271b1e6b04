// Package observability provides logging, metrics, and tracing
// functionality for routebind.
//
// # Logging
//
// The Logger interface wraps zap:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("route matched",
//	    observability.String("route_path", "user/:id"),
//	)
//
// # Metrics
//
// Metrics owns the Prometheus registry that backs /metrics. Packages
// with their own collectors (router, preload, httpclient) register
// against Metrics.Registry().
//
// # Tracing
//
// OpenTelemetry tracing with an optional OTLP gRPC exporter:
//
//	tracer, err := observability.NewTracer(cfg)
//	defer tracer.Shutdown(ctx)
package observability
