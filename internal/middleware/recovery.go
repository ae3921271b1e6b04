package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/routebind/internal/observability"
	"github.com/vyrodovalexey/routebind/internal/stacktrace"
)

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	Logger observability.Logger
	// EnableStackTrace renders the stack trace page instead of the
	// generic error body.
	EnableStackTrace bool
	PageOptions      stacktrace.Options
	// PanicHandler, when set, writes the response instead of the
	// middleware.
	PanicHandler func(c *gin.Context, err error)
}

// Recovery returns a middleware that recovers from panics.
func Recovery(logger observability.Logger, config RecoveryConfig) gin.HandlerFunc {
	config.Logger = logger
	return RecoveryWithConfig(config)
}

// RecoveryWithConfig returns a recovery middleware with custom configuration.
func RecoveryWithConfig(config RecoveryConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = observability.NopLogger()
	}
	if config.PageOptions.Logger == nil {
		config.PageOptions.Logger = config.Logger
	}

	return func(c *gin.Context) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			//nolint:errorlint // http.ErrAbortHandler is a sentinel re-panicked by net/http
			if v == http.ErrAbortHandler {
				panic(v)
			}

			err := stacktrace.FromPanic(v, debug.Stack())

			config.Logger.WithContext(c.Request.Context()).Error("panic recovered",
				observability.Error(err),
				observability.String("method", c.Request.Method),
				observability.String("path", c.Request.URL.Path),
				observability.String("client_ip", c.ClientIP()),
				observability.String("stack", err.(stacktrace.StackTracer).Stack()),
			)

			RecordSpanError(c, err)
			_ = c.Error(err)

			if config.PanicHandler != nil {
				config.PanicHandler(c, err)
				c.Abort()
				return
			}

			WriteError(c, err, config.EnableStackTrace, config.PageOptions)
		}()

		c.Next()
	}
}

// WriteError writes err as an HTML error page when it can be rendered and
// rendering is enabled, and as a generic 500 otherwise.
func WriteError(c *gin.Context, err error, enableStackTrace bool, opts stacktrace.Options) {
	if c.Writer.Written() {
		c.Abort()
		return
	}

	if enableStackTrace {
		page := stacktrace.Render(err, opts)
		if page.HasContent {
			status := page.Status
			if status == 0 {
				status = http.StatusInternalServerError
			}
			c.Data(status, "text/html; charset=utf-8", []byte(page.Content))
			c.Abort()
			return
		}
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":   "Internal Server Error",
		"message": "An unexpected error occurred",
	})
}
