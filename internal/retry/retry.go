package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

// Default values.
const (
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 2 * time.Second
	DefaultJitterFactor   = 0.25
)

// Config controls how an operation is retried. MaxRetries of zero runs
// the operation once.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// JitterFactor adds up to that fraction of the backoff, capped at 1.
	JitterFactor float64
}

func (c Config) withDefaults() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	switch {
	case c.JitterFactor < 0:
		c.JitterFactor = 0
	case c.JitterFactor > 1:
		c.JitterFactor = 1
	}
	return c
}

// Func is an operation that can be retried.
type Func func(ctx context.Context) error

// Options customizes Do.
type Options struct {
	// ShouldRetry reports whether err is worth another attempt. Nil
	// retries every error.
	ShouldRetry func(err error) bool
	// OnRetry is called before sleeping ahead of attempt (1-based).
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// Do runs fn until it succeeds, returns a non-retryable error or the
// retries are exhausted. It returns the last error of fn, or ctx.Err()
// when ctx is done while waiting.
func Do(ctx context.Context, cfg Config, fn Func, opts Options) error {
	cfg = cfg.withDefaults()

	var err error
	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries {
			return err
		}
		if opts.ShouldRetry != nil && !opts.ShouldRetry(err) {
			return err
		}

		backoff := Backoff(attempt, cfg)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff returns the delay before retry number attempt+1: the initial
// backoff doubled per attempt plus jitter, capped at MaxBackoff.
func Backoff(attempt int, cfg Config) time.Duration {
	cfg = cfg.withDefaults()

	backoff := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	//nolint:gosec // G404: jitter for retry timing is not security-sensitive
	backoff += backoff * cfg.JitterFactor * rand.Float64()

	if backoff > float64(cfg.MaxBackoff) {
		return cfg.MaxBackoff
	}
	return time.Duration(backoff)
}

// RetryableStatus reports whether a response status is transient.
func RetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IdempotentMethod reports whether requests with method may be repeated.
func IdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}
