package stacktrace

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/routebind/internal/observability"
)

type htmlError struct {
	status int
	body   string
}

func (e *htmlError) Error() string   { return "html error" }
func (e *htmlError) HTML() string    { return e.body }
func (e *htmlError) StatusCode() int { return e.status }

type plainHTMLError struct{}

func (plainHTMLError) Error() string { return "plain" }
func (plainHTMLError) HTML() string  { return "<p>plain</p>" }

type responseError struct {
	status      int
	contentType string
	body        string
}

func (e *responseError) Error() string        { return fmt.Sprintf("status %d", e.status) }
func (e *responseError) StatusCode() int      { return e.status }
func (e *responseError) ContentType() string  { return e.contentType }
func (e *responseError) ResponseBody() []byte { return []byte(e.body) }

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		content string
		has     bool
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name:    "custom html with status",
			err:     &htmlError{status: http.StatusTeapot, body: "<h1>teapot</h1>"},
			status:  http.StatusTeapot,
			content: "<h1>teapot</h1>",
			has:     true,
		},
		{
			name:    "custom html without status",
			err:     plainHTMLError{},
			content: "<p>plain</p>",
			has:     true,
		},
		{
			name:    "wrapped custom html",
			err:     fmt.Errorf("render: %w", &htmlError{status: 503, body: "<p>down</p>"}),
			status:  503,
			content: "<p>down</p>",
			has:     true,
		},
		{
			name: "upstream html response forwarded",
			err: &responseError{
				status:      http.StatusBadGateway,
				contentType: "text/html; charset=utf-8",
				body:        "<pre>upstream trace</pre>",
			},
			status:  http.StatusBadGateway,
			content: "<pre>upstream trace</pre>",
			has:     true,
		},
		{
			name: "upstream json response without stack",
			err: &responseError{
				status:      http.StatusInternalServerError,
				contentType: "application/json",
				body:        `{"error":"x"}`,
			},
		},
		{
			name: "error without stack",
			err:  errors.New("no stack"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := Render(tt.err, Options{Logger: observability.NopLogger()})
			assert.Equal(t, tt.status, page.Status)
			assert.Equal(t, tt.content, page.Content)
			assert.Equal(t, tt.has, page.HasContent)
		})
	}
}

func TestRender_StackPage(t *testing.T) {
	t.Parallel()

	err := Capture(errors.New("<b>boom</b>"))
	page := Render(fmt.Errorf("handler failed: %w", err), Options{Title: "Render failed", FontSize: "20px"})

	require.True(t, page.HasContent)
	assert.Equal(t, 0, page.Status)
	assert.True(t, strings.HasPrefix(page.Content, "<!DOCTYPE html>"))
	assert.Contains(t, page.Content, "Render failed")
	assert.Contains(t, page.Content, "20px")
	assert.Contains(t, page.Content, "boom")
	assert.NotContains(t, page.Content, "<b>boom</b>")
	assert.Contains(t, page.Content, "TestRender_StackPage")
}

func TestRender_StackFromWrappedOriginal(t *testing.T) {
	t.Parallel()

	original := FromPanic("kaboom", []byte("goroutine 1 [running]:\nmain.main()\n\t/app/main.go:10 +0x1d\n"))
	page := Render(&responseError{status: 500, contentType: "application/json"}, Options{})
	assert.False(t, page.HasContent)

	page = Render(fmt.Errorf("request failed: %w", original), Options{})
	require.True(t, page.HasContent)
	assert.Contains(t, page.Content, "main.main()")
	assert.Contains(t, page.Content, "/app/main.go:10")
	assert.Contains(t, page.Content, "frame-location")
}

func TestRender_PanicFallsBackToRawStack(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logger := observability.NewLoggerFromZap(zap.New(core))

	orig := renderPage
	renderPage = func(string, string, Options) string { panic("template broke") }
	t.Cleanup(func() { renderPage = orig })

	stack := "goroutine 7 [running]:\nmain.f()\n"
	page := Render(FromPanic(errors.New("x"), []byte(stack)), Options{Logger: logger})

	assert.True(t, page.HasContent)
	assert.Equal(t, stack, page.Content)
	assert.Equal(t, 1, logs.FilterMessage("failed to render stack trace").Len())
}

func TestCapture(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Capture(nil))

	base := errors.New("base")
	captured := Capture(base)
	require.Error(t, captured)
	assert.ErrorIs(t, captured, base)
	assert.Equal(t, "base", captured.Error())

	var tracer StackTracer
	require.ErrorAs(t, captured, &tracer)
	assert.Contains(t, tracer.Stack(), "TestCapture")

	assert.Same(t, captured, Capture(captured))
}

func TestFromPanic(t *testing.T) {
	t.Parallel()

	stack := debug.Stack()

	err := FromPanic("bad thing", stack)
	assert.EqualError(t, err, "panic: bad thing")

	cause := errors.New("typed")
	err = FromPanic(cause, stack)
	assert.ErrorIs(t, err, cause)

	var stackErr *StackError
	require.ErrorAs(t, err, &stackErr)
	assert.Equal(t, string(stack), stackErr.Stack())
}

func TestIsHTML(t *testing.T) {
	t.Parallel()

	assert.True(t, isHTML("text/html"))
	assert.True(t, isHTML("TEXT/HTML; charset=utf-8"))
	assert.True(t, isHTML(" text/html ;;"))
	assert.False(t, isHTML("application/json"))
	assert.False(t, isHTML(""))
}
