package preload

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/routebind/internal/httpclient"
	"github.com/vyrodovalexey/routebind/internal/location"
	"github.com/vyrodovalexey/routebind/internal/observability"
	"github.com/vyrodovalexey/routebind/internal/router"
	"github.com/vyrodovalexey/routebind/internal/stacktrace"
	"github.com/vyrodovalexey/routebind/internal/util"
)

const tracerName = "github.com/vyrodovalexey/routebind/internal/preload"

// Runner executes the preloads of matched route chains.
type Runner struct {
	registry  *Registry
	logger    observability.Logger
	tracer    trace.Tracer
	observers []Observer
	timeout   time.Duration
	metrics   *runnerMetrics

	namespace string
	promReg   prometheus.Registerer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTracer sets the tracer used for preload spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// WithObserver adds an event observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, o)
	}
}

// WithTimeout bounds a whole run. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithMetrics registers the runner metrics under namespace with reg.
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(r *Runner) {
		r.namespace = namespace
		r.promReg = reg
	}
}

// NewRunner creates a Runner resolving preload names in registry.
func NewRunner(registry *Registry, opts ...Option) *Runner {
	if registry == nil {
		registry = NewRegistry()
	}
	r := &Runner{
		registry:  registry,
		logger:    observability.NopLogger(),
		tracer:    otel.Tracer(tracerName),
		namespace: observability.DefaultNamespace,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics = newRunnerMetrics(r.namespace, r.promReg)
	return r
}

type task struct {
	route    *router.Route
	fn       Func
	blocking bool
}

// Run executes the preloads declared along state.MatchedRoutes and returns
// the data they stored. Preloads start concurrently in chain order; a
// blocking route waits for every earlier preload to finish first. The
// first failure cancels the remaining preloads. Data written before a
// failure is still returned.
func (r *Runner) Run(ctx context.Context, state router.RouterState, client *httpclient.Client) (*Data, error) {
	data := NewData()

	tasks, err := r.resolve(state.MatchedRoutes)
	if len(tasks) == 0 && err == nil {
		return data, nil
	}

	event := Event{RoutePath: router.GetRoutePath(state), Location: location.ToURL(state.Location)}
	logger := r.logger.WithContext(ctx).With(
		observability.String("route_path", event.RoutePath),
		observability.String("location", event.Location),
	)

	start := time.Now()
	r.emit(withType(event, EventStarted))
	logger.Debug("preload started", observability.Int("preloads", len(tasks)))

	ctx, span := r.tracer.Start(ctx, "preload.Run", trace.WithAttributes(
		attribute.String("routebind.route_path", event.RoutePath),
		attribute.Int("routebind.preload.count", len(tasks)),
	))
	defer span.End()

	if err == nil {
		err = r.runTasks(ctx, tasks, state, client, data)
	}

	event.Duration = time.Since(start)
	if err != nil {
		event.Err = err
		r.emit(withType(event, EventFailed))
		r.metrics.observe(outcomeFailed, event.Duration)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("preload failed",
			observability.Duration("duration", event.Duration),
			observability.Error(err),
		)
		return data, err
	}

	r.emit(withType(event, EventFinished))
	r.metrics.observe(outcomeFinished, event.Duration)
	logger.Debug("preload finished", observability.Duration("duration", event.Duration))
	return data, nil
}

func (r *Runner) resolve(routes []*router.Route) ([]task, error) {
	var tasks []task
	for _, route := range routes {
		if route == nil || route.Preload == "" {
			continue
		}
		fn, ok := r.registry.Lookup(route.Preload)
		if !ok {
			return tasks, &PreloadError{Route: route.Path, Preload: route.Preload, Cause: ErrUnknownPreload}
		}
		tasks = append(tasks, task{route: route, fn: fn, blocking: route.PreloadBlocking})
	}
	return tasks, nil
}

func (r *Runner) runTasks(
	ctx context.Context,
	tasks []task,
	state router.RouterState,
	client *httpclient.Client,
	data *Data,
) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	pending := 0
	for _, t := range tasks {
		if t.blocking && pending > 0 {
			if err := g.Wait(); err != nil {
				return r.timeoutError(ctx, err)
			}
			g, gctx = errgroup.WithContext(ctx)
			pending = 0
		}

		stageCtx := gctx
		g.Go(func() error {
			return r.runOne(stageCtx, t, state, client, data)
		})
		pending++
	}

	return r.timeoutError(ctx, g.Wait())
}

func (r *Runner) timeoutError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if r.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return util.NewTimeoutError("preload", r.timeout, err)
	}
	return err
}

func (r *Runner) runOne(
	ctx context.Context,
	t task,
	state router.RouterState,
	client *httpclient.Client,
	data *Data,
) (err error) {
	ctx, span := r.tracer.Start(ctx, "preload "+t.route.Preload)
	defer span.End()

	defer func() {
		if v := recover(); v != nil {
			err = &PreloadError{
				Route:   t.route.Path,
				Preload: t.route.Preload,
				Cause:   stacktrace.FromPanic(v, debug.Stack()),
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	pc := &Context{
		Route:    t.route,
		Location: state.Location,
		Params:   state.Params,
		HTTP:     client,
		Data:     data,
		cookies:  requestCookies(ctx),
	}
	if fnErr := t.fn(ctx, pc); fnErr != nil {
		return &PreloadError{Route: t.route.Path, Preload: t.route.Preload, Cause: fnErr}
	}
	return nil
}

func (r *Runner) emit(e Event) {
	for _, o := range r.observers {
		o.OnPreloadEvent(e)
	}
}

func withType(e Event, t EventType) Event {
	e.Type = t
	return e
}

const (
	outcomeFinished = "finished"
	outcomeFailed   = "failed"
)

type runnerMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newRunnerMetrics(namespace string, reg prometheus.Registerer) *runnerMetrics {
	factory := promauto.With(reg)
	return &runnerMetrics{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "preload",
				Name:      "runs_total",
				Help:      "Total number of preload runs by outcome",
			},
			[]string{"outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "preload",
				Name:      "duration_seconds",
				Help:      "Preload run duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
}

func (m *runnerMetrics) observe(outcome string, d time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(d.Seconds())
}
