// Package stacktrace turns errors raised while rendering a page into an
// HTML response.
//
// Errors that already carry an HTML body are passed through unchanged,
// upstream HTML error responses are forwarded, and anything with a stack
// trace is rendered as a readable error page. Errors without a stack
// produce an empty Page so that callers can fall back to their own
// response.
package stacktrace

import (
	"errors"
	"fmt"
	"mime"
	"runtime/debug"
	"strings"

	"github.com/vyrodovalexey/routebind/internal/observability"
)

// HTMLError is an error that knows how to render itself.
type HTMLError interface {
	error
	HTML() string
}

// StatusError is an error that carries an HTTP status code.
type StatusError interface {
	error
	StatusCode() int
}

// ResponseBodyError is an error produced by an HTTP response whose body
// is available.
type ResponseBodyError interface {
	error
	ContentType() string
	ResponseBody() []byte
}

// StackTracer is implemented by errors that captured a stack trace.
type StackTracer interface {
	Stack() string
}

// Options controls the look of the rendered page.
type Options struct {
	Title      string
	FontFamily string
	FontSize   string
	// Logger receives rendering failures. Defaults to the global logger.
	Logger observability.Logger
}

// Page is the result of Render. Status is zero when the error did not
// specify one.
type Page struct {
	Status     int
	Content    string
	HasContent bool
}

const (
	defaultTitle      = "Error"
	defaultFontFamily = "Menlo, Consolas, monospace"
	defaultFontSize   = "13px"
)

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = defaultTitle
	}
	if o.FontFamily == "" {
		o.FontFamily = defaultFontFamily
	}
	if o.FontSize == "" {
		o.FontSize = defaultFontSize
	}
	if o.Logger == nil {
		o.Logger = observability.L()
	}
	return o
}

// renderPage is swapped in tests.
var renderPage = renderHTML

// Render converts err into a Page.
func Render(err error, opts Options) Page {
	if err == nil {
		return Page{}
	}
	opts = opts.withDefaults()

	var htmlErr HTMLError
	if errors.As(err, &htmlErr) {
		return Page{Status: statusOf(err), Content: htmlErr.HTML(), HasContent: true}
	}

	var statusErr StatusError
	var bodyErr ResponseBodyError
	if errors.As(err, &statusErr) && errors.As(err, &bodyErr) && isHTML(bodyErr.ContentType()) {
		return Page{Status: statusErr.StatusCode(), Content: string(bodyErr.ResponseBody()), HasContent: true}
	}

	stack := stackOf(err)
	if stack == "" {
		return Page{}
	}

	return Page{Status: statusOf(err), Content: safeRender(err, stack, opts), HasContent: true}
}

func safeRender(err error, stack string, opts Options) (content string) {
	defer func() {
		if r := recover(); r != nil {
			opts.Logger.Error("failed to render stack trace",
				observability.Any("panic", r),
				observability.Error(err),
				observability.String("stack", string(debug.Stack())),
			)
			content = stack
		}
	}()
	return renderPage(err.Error(), stack, opts)
}

func statusOf(err error) int {
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode()
	}
	return 0
}

func stackOf(err error) string {
	var tracer StackTracer
	if errors.As(err, &tracer) {
		return tracer.Stack()
	}
	return ""
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.EqualFold(mediaType, "text/html")
}

// StackError is an error annotated with the stack at the point of capture.
type StackError struct {
	Err   error
	stack string
}

// Capture wraps err with the current goroutine's stack. Errors that
// already carry a stack are returned unchanged.
func Capture(err error) error {
	if err == nil {
		return nil
	}
	var tracer StackTracer
	if errors.As(err, &tracer) {
		return err
	}
	return &StackError{Err: err, stack: string(debug.Stack())}
}

// FromPanic builds an error from a recovered panic value and the stack
// taken in the deferred function.
func FromPanic(v any, stack []byte) error {
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", v)
	}
	return &StackError{Err: err, stack: string(stack)}
}

// Error implements the error interface.
func (e *StackError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *StackError) Unwrap() error {
	return e.Err
}

// Stack returns the captured stack trace.
func (e *StackError) Stack() string {
	return e.stack
}
