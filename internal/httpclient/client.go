// Package httpclient provides the HTTP client handed to preload functions
// for fetching page data from backend APIs.
//
// Requests are rate limited, retried when transient, guarded by a circuit
// breaker and traced.
// A client derived with ForRequest forwards the cookies and request ID of
// the page request being rendered.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/routebind/internal/observability"
	"github.com/vyrodovalexey/routebind/internal/retry"
	"github.com/vyrodovalexey/routebind/internal/util"
)

// RequestIDHeader is forwarded to backends by ForRequest clients.
const RequestIDHeader = "X-Request-ID"

const tracerName = "github.com/vyrodovalexey/routebind/internal/httpclient"

// Default configuration values.
const (
	DefaultName             = "api"
	DefaultTimeout          = 10 * time.Second
	DefaultBreakerThreshold = 5
	DefaultBreakerTimeout   = 30 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	Enabled bool
	// Threshold is the number of requests in a window before the failure
	// ratio is evaluated.
	Threshold int
	Timeout   time.Duration
}

// Config configures a Client.
type Config struct {
	Name    string
	BaseURL string
	Timeout time.Duration
	// RateLimit is the number of requests per second. Zero disables
	// limiting.
	RateLimit      float64
	Burst          int
	CircuitBreaker BreakerConfig
	// Retry applies to idempotent requests that failed with a network
	// error or a transient status.
	Retry   retry.Config
	Headers map[string]string
}

// Client is a JSON HTTP client bound to a base URL.
type Client struct {
	name    string
	baseURL *url.URL
	http    *http.Client
	logger  observability.Logger
	tracer  trace.Tracer
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	retry   retry.Config
	metrics *clientMetrics

	namespace string
	registry  prometheus.Registerer

	headers http.Header
	cookies []*http.Cookie
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithMetrics registers the client metrics under namespace with reg.
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.namespace = namespace
		c.registry = reg
	}
}

// New creates a new Client.
func New(cfg Config, logger observability.Logger, opts ...Option) (*Client, error) {
	if err := util.ValidateURL(cfg.BaseURL); err != nil {
		return nil, util.NewConfigErrorWithCause("baseURL", "invalid base URL", err)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, util.NewConfigErrorWithCause("baseURL", "invalid base URL", err)
	}

	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	c := &Client{
		name:      cfg.Name,
		baseURL:   base,
		logger:    logger.With(observability.String("client", cfg.Name)),
		tracer:    otel.Tracer(tracerName),
		namespace: observability.DefaultNamespace,
		headers:   make(http.Header),
		retry:     cfg.Retry,
	}
	for k, v := range cfg.Headers {
		c.headers.Set(k, v)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	c.metrics = newClientMetrics(c.namespace, c.registry)

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RateLimit)
			if burst < 1 {
				burst = 1
			}
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.CircuitBreaker.Enabled {
		c.breaker = c.newBreaker(cfg.CircuitBreaker)
	}

	return c, nil
}

func (c *Client) newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}
	thresholdU32 := safeIntToUint32(threshold)

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        c.name,
		MaxRequests: 1,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= thresholdU32 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			c.metrics.breakerState.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

// Name returns the configured client name.
func (c *Client) Name() string {
	return c.name
}

// BreakerState returns the circuit breaker state ("closed", "half-open",
// "open"), or "disabled" when no breaker is configured.
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// ForRequest returns a copy of c that forwards the cookies and request ID
// of r. The copy shares the rate limiter and circuit breaker.
func (c *Client) ForRequest(r *http.Request) *Client {
	clone := *c
	clone.headers = c.headers.Clone()
	clone.cookies = r.Cookies()

	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = util.RequestIDFromContext(r.Context())
	}
	if requestID != "" {
		clone.headers.Set(RequestIDHeader, requestID)
	}
	return &clone
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Do issues a request to path, relative to the base URL. A nil out
// discards the response body; a *string or *[]byte receives it raw.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	target, err := c.resolve(path)
	if err != nil {
		return err
	}

	ctx, span := c.tracer.Start(ctx, "httpclient "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.doWithRetry(ctx, method, target, body)
	c.metrics.duration.WithLabelValues(c.name, method).Observe(time.Since(start).Seconds())

	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.status)
		span.SetAttributes(attribute.Int("http.response.status_code", resp.status))
	}
	c.metrics.requests.WithLabelValues(c.name, method, status).Inc()

	if err == nil && resp.status >= http.StatusBadRequest {
		err = resp.asError(method, target)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WithContext(ctx).Debug("request failed",
			observability.String("method", method),
			observability.String("url", target),
			observability.Error(err),
		)
		return err
	}

	return decode(resp.body, out)
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) asError(method, target string) *ResponseError {
	return &ResponseError{
		Method: method,
		URL:    target,
		Status: r.status,
		Header: r.header,
		Body:   r.body,
	}
}

func (c *Client) doWithRetry(ctx context.Context, method, target string, body any) (*response, error) {
	if c.retry.MaxRetries <= 0 || !retry.IdempotentMethod(method) {
		return c.do(ctx, method, target, body)
	}

	var resp *response
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		resp, err = c.do(ctx, method, target, body)
		if err == nil && retry.RetryableStatus(resp.status) {
			return resp.asError(method, target)
		}
		return err
	}, retry.Options{
		ShouldRetry: retryable,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			c.logger.WithContext(ctx).Debug("retrying request",
				observability.String("method", method),
				observability.String("url", target),
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(err),
			)
		},
	})

	var respErr *ResponseError
	if err != nil && !errors.As(err, &respErr) {
		return nil, err
	}
	return resp, nil
}

func retryable(err error) bool {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, util.ErrCircuitOpen) && !errors.Is(err, util.ErrRateLimited)
}

func (c *Client) do(ctx context.Context, method, target string, body any) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, util.NewRateLimitError(c.name, err)
		}
	}

	if c.breaker == nil {
		return c.roundTrip(ctx, method, target, body)
	}

	var resp *response
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var rtErr error
		resp, rtErr = c.roundTrip(ctx, method, target, body)
		if rtErr != nil {
			return nil, rtErr
		}
		if resp.status >= http.StatusInternalServerError {
			return nil, resp.asError(method, target)
		}
		return nil, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, util.NewCircuitOpenError(c.name, c.breaker.State().String())
	}
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

func (c *Client) roundTrip(ctx context.Context, method, target string, body any) (*response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.headers.Clone()
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	observability.InjectTraceContext(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	base := *c.baseURL
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return base.ResolveReference(ref).String(), nil
}

func decode(body []byte, out any) error {
	switch v := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*v = body
		return nil
	case *string:
		*v = string(body)
		return nil
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}
