package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/routebind/internal/history"
	"github.com/vyrodovalexey/routebind/internal/location"
	"github.com/vyrodovalexey/routebind/internal/observability"
)

// tracerName is the instrumentation name used for match spans.
const tracerName = "github.com/vyrodovalexey/routebind/internal/router"

// Matcher adapts an Engine into a single-result match.
type Matcher struct {
	engine    Engine
	logger    observability.Logger
	tracer    trace.Tracer
	metrics   *matchMetrics
	namespace string
	registry  prometheus.Registerer
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithEngine replaces the default TreeEngine.
func WithEngine(engine Engine) Option {
	return func(m *Matcher) {
		m.engine = engine
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// WithTracer sets the tracer used for match spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Matcher) {
		m.tracer = tracer
	}
}

// WithMetrics registers the match metrics under namespace with reg.
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(m *Matcher) {
		m.namespace = namespace
		m.registry = reg
	}
}

// NewMatcher creates a new Matcher.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		engine:    NewTreeEngine(),
		logger:    observability.NopLogger(),
		tracer:    otel.Tracer(tracerName),
		namespace: observability.DefaultNamespace,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.metrics = newMatchMetrics(m.namespace, m.registry)
	return m
}

var (
	defaultMatcher     *Matcher
	defaultMatcherOnce sync.Once
)

// DefaultMatcher returns the matcher used by MatchRoutesAgainstLocation.
func DefaultMatcher() *Matcher {
	defaultMatcherOnce.Do(func() {
		defaultMatcher = NewMatcher(WithLogger(observability.L()))
	})
	return defaultMatcher
}

// MatchOption sets the target of a single match.
type MatchOption func(*matchOptions)

type matchOptions struct {
	location *location.Location
	rawURL   *string
	history  history.History
}

// WithLocation matches against loc.
func WithLocation(loc location.Location) MatchOption {
	return func(o *matchOptions) {
		o.location = &loc
		o.rawURL = nil
	}
}

// WithURL matches against the location parsed from raw.
func WithURL(raw string) MatchOption {
	return func(o *matchOptions) {
		o.rawURL = &raw
		o.location = nil
	}
}

// WithHistory supplies the navigation history. Without a location option
// its current location is matched.
func WithHistory(h history.History) MatchOption {
	return func(o *matchOptions) {
		o.history = h
	}
}

// MatchRoutesAgainstLocation matches routes with the default matcher.
func MatchRoutesAgainstLocation(ctx context.Context, routes []*Route, opts ...MatchOption) (MatchResult, error) {
	return DefaultMatcher().Match(ctx, routes, opts...)
}

type engineOutcome struct {
	err      error
	redirect *Redirect
	state    *RouterState
}

// Match performs exactly one engine pass and returns either a *Redirect,
// a *Matched or an error. Engine errors are returned as reported; a pass
// that yields nothing returns *NoRouteMatchedError. Without a history a
// fresh in-memory history is created for this call only.
func (m *Matcher) Match(ctx context.Context, routes []*Route, opts ...MatchOption) (MatchResult, error) {
	start := time.Now()

	ctx, span := m.tracer.Start(ctx, "router.Match")
	defer span.End()

	result, loc, err := m.match(ctx, routes, opts)
	outcome := classify(result, err)

	m.metrics.matches.WithLabelValues(outcome).Inc()
	m.metrics.duration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	url := location.ToURL(loc)
	span.SetAttributes(
		attribute.String("routebind.location", url),
		attribute.String("routebind.match.outcome", outcome),
	)

	logger := m.logger.WithContext(ctx)
	switch r := result.(type) {
	case *Matched:
		routePath := GetRoutePath(r.State)
		span.SetAttributes(attribute.String("routebind.route_path", routePath))
		logger.Debug("route matched",
			observability.String("location", url),
			observability.String("route_path", routePath),
			observability.Int("depth", len(r.State.MatchedRoutes)),
		)
	case *Redirect:
		logger.Debug("route redirected",
			observability.String("location", url),
			observability.String("redirect", r.URL()),
			observability.Int("status", r.Status),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Debug("route match failed",
			observability.String("location", url),
			observability.String("outcome", outcome),
			observability.Error(err),
		)
	}

	return result, err
}

func (m *Matcher) match(ctx context.Context, routes []*Route, opts []MatchOption) (MatchResult, location.Location, error) {
	var o matchOptions
	for _, opt := range opts {
		opt(&o)
	}

	h := o.history
	if h == nil {
		h = history.NewMemory()
	}

	var loc location.Location
	switch {
	case o.location != nil:
		loc = *o.location
	case o.rawURL != nil:
		parsed, err := location.Parse(*o.rawURL)
		if err != nil {
			return nil, location.Location{Pathname: *o.rawURL}, &RoutingError{Cause: err}
		}
		loc = parsed
	default:
		loc = h.Location()
	}

	if len(routes) == 0 {
		return nil, loc, &RoutingError{Cause: ErrEmptyRoutes}
	}

	done := make(chan engineOutcome, 1)
	var once sync.Once
	m.engine.Match(ctx, MatchRequest{Routes: routes, Location: loc, History: h},
		func(err error, redirect *Redirect, state *RouterState) {
			once.Do(func() {
				done <- engineOutcome{err: err, redirect: redirect, state: state}
			})
		},
	)

	var out engineOutcome
	select {
	case <-ctx.Done():
		return nil, loc, ctx.Err()
	case out = <-done:
	}

	switch {
	case out.err != nil:
		return nil, loc, out.err
	case out.redirect != nil:
		return out.redirect, loc, nil
	case out.state == nil:
		return nil, loc, &NoRouteMatchedError{URL: location.ToURL(loc)}
	default:
		return &Matched{State: *out.state}, loc, nil
	}
}

func classify(result MatchResult, err error) string {
	var notFound *NoRouteMatchedError
	switch {
	case errors.As(err, &notFound):
		return outcomeNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	case err != nil:
		return outcomeError
	}
	if _, ok := result.(*Redirect); ok {
		return outcomeRedirect
	}
	return outcomeMatched
}
