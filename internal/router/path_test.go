package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetRoutePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		routes   []*Route
		expected string
	}{
		{
			name:     "strips one leading and trailing slash each",
			routes:   []*Route{{Path: "/user/:id/"}, {Path: "/post/:postId"}},
			expected: "user/:id/post/:postId",
		},
		{
			name:     "empty chain",
			routes:   nil,
			expected: "/",
		},
		{
			name:     "path-less chain",
			routes:   []*Route{{Name: "layout"}, {Name: "index"}},
			expected: "/",
		},
		{
			name:     "root only",
			routes:   []*Route{{Path: "/"}},
			expected: "/",
		},
		{
			name:     "root keeps leading separator",
			routes:   []*Route{{Path: "/"}, {Path: "user/:id"}},
			expected: "/user/:id",
		},
		{
			name:     "path-less routes skipped",
			routes:   []*Route{{Path: "/app"}, {Name: "layout"}, {Path: "settings"}, {Name: "index"}},
			expected: "app/settings",
		},
		{
			name:     "only one slash stripped",
			routes:   []*Route{{Path: "//double//"}},
			expected: "/double/",
		},
		{
			name:     "nil entries ignored",
			routes:   []*Route{nil, {Path: "about"}},
			expected: "about",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			state := RouterState{MatchedRoutes: tt.routes}
			assert.Equal(t, tt.expected, GetRoutePath(state))
			assert.Equal(t, tt.expected, RoutePath(tt.routes))
		})
	}
}

func TestGetRoutePath_DoesNotDependOnValues(t *testing.T) {
	t.Parallel()

	routes := []*Route{{Path: "/user/:id"}, {Path: "post/:postId"}}
	a := RouterState{MatchedRoutes: routes, Params: Params{{Key: "id", Values: []string{"1"}}}}
	b := RouterState{MatchedRoutes: routes, Params: Params{{Key: "id", Values: []string{"2"}}}}

	assert.Equal(t, GetRoutePath(a), GetRoutePath(b))
}
