package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/routebind/internal/observability"
)

const (
	// TracerName is the name of the tracer.
	TracerName = "routebind"
	// SpanKey is the gin context key for the span.
	SpanKey = "otel-span"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	Tracer trace.Tracer
	// Propagators extracts the remote parent span. Nil uses the global
	// propagator.
	Propagators propagation.TextMapPropagator
	SkipPaths   []string
}

// Tracing returns a middleware that creates OpenTelemetry server spans.
// A nil tracer uses the global provider.
func Tracing(tracer trace.Tracer) gin.HandlerFunc {
	return TracingWithConfig(TracingConfig{Tracer: tracer})
}

// TracingWithConfig returns a tracing middleware with custom configuration.
func TracingWithConfig(config TracingConfig) gin.HandlerFunc {
	if config.Tracer == nil {
		config.Tracer = otel.Tracer(TracerName)
	}
	extract := observability.ExtractTraceContext
	if p := config.Propagators; p != nil {
		extract = func(ctx context.Context, h http.Header) context.Context {
			return p.Extract(ctx, propagation.HeaderCarrier(h))
		}
	}

	skipPaths := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skipPaths[path] {
			c.Next()
			return
		}

		ctx := extract(c.Request.Context(), c.Request.Header)
		ctx, span := config.Tracer.Start(ctx, fmt.Sprintf("%s %s", c.Request.Method, path),
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.target", path),
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("net.peer.ip", c.ClientIP()),
		)
		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request.id", requestID))
		}

		c.Set(SpanKey, span)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		route := GetRoute(c)
		span.SetName(fmt.Sprintf("%s %s", c.Request.Method, route))
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int("http.response_content_length", c.Writer.Size()),
		)

		if len(c.Errors) > 0 {
			span.SetAttributes(attribute.String("error", c.Errors.String()))
		}
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
}

// GetSpan returns the span from the context.
func GetSpan(c *gin.Context) trace.Span {
	if span, exists := c.Get(SpanKey); exists {
		if s, ok := span.(trace.Span); ok {
			return s
		}
	}
	return nil
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(c *gin.Context, name string, attrs ...attribute.KeyValue) {
	span := GetSpan(c)
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordSpanError records an error on the current span.
func RecordSpanError(c *gin.Context, err error) {
	span := GetSpan(c)
	if span == nil {
		return
	}
	span.RecordError(err)
}
