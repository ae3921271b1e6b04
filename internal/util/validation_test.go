package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https", url: "https://api.example.com", wantErr: false},
		{name: "http with port", url: "http://localhost:8080/v1", wantErr: false},
		{name: "empty", url: "", wantErr: true},
		{name: "no scheme", url: "api.example.com", wantErr: true},
		{name: "ftp", url: "ftp://example.com", wantErr: true},
		{name: "no host", url: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateListenAddress(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateListenAddress(":8080"))
	assert.NoError(t, ValidateListenAddress("127.0.0.1:0"))
	assert.Error(t, ValidateListenAddress(""))
	assert.Error(t, ValidateListenAddress("localhost"))
	assert.Error(t, ValidateListenAddress("localhost:"))
}

func TestValidateDurations(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateDuration(0))
	assert.Error(t, ValidateDuration(-time.Second))
}

func TestValidateRedirectStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{0, 301, 302, 307, 308} {
		assert.NoError(t, ValidateRedirectStatus(code), code)
	}
	for _, code := range []int{200, 404, 500, 299, 400} {
		assert.Error(t, ValidateRedirectStatus(code), code)
	}
}

func TestValidateRoutePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		wantErr bool
	}{
		{name: "empty", pattern: "", wantErr: false},
		{name: "static", pattern: "/about", wantErr: false},
		{name: "params", pattern: "/user/:id/post/:postId", wantErr: false},
		{name: "optional group", pattern: "/files(/:name)", wantErr: false},
		{name: "splats", pattern: "/assets/**/*.js", wantErr: false},
		{name: "unbalanced open", pattern: "/files(/:name", wantErr: true},
		{name: "unbalanced close", pattern: "/files)/:name", wantErr: true},
		{name: "empty param", pattern: "/user/:/edit", wantErr: true},
		{name: "trailing colon", pattern: "/user/:", wantErr: true},
		{name: "triple star", pattern: "/a/***", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateRoutePattern(tt.pattern)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateNonEmpty(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateNonEmpty("x", "name"))
	assert.EqualError(t, ValidateNonEmpty("  ", "name"), "name cannot be empty")
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, RoutePathFromContext(ctx))
	assert.True(t, StartTimeFromContext(ctx).IsZero())
	assert.Zero(t, ElapsedTime(ctx))

	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithRoutePath(ctx, "user/:id")
	ctx = ContextWithStartTime(ctx, time.Now().Add(-time.Second))

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "user/:id", RoutePathFromContext(ctx))
	assert.GreaterOrEqual(t, ElapsedTime(ctx), time.Second)
}
