package router

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/routebind/internal/util"
)

// ErrEmptyRoutes is the cause of the RoutingError returned when matching
// against an empty route tree.
var ErrEmptyRoutes = errors.New("no routes to match against")

// ErrEmptyRedirect is the cause of the RoutingError returned for a route
// whose redirect has no target.
var ErrEmptyRedirect = errors.New("redirect target cannot be empty")

// RoutingError reports a failure of the route engine.
type RoutingError struct {
	// Route is the path of the route being processed, if known.
	Route string
	Cause error
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	if e.Route != "" {
		return fmt.Sprintf("routing error at route %q: %v", e.Route, e.Cause)
	}
	return fmt.Sprintf("routing error: %v", e.Cause)
}

// Unwrap returns the underlying error.
func (e *RoutingError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *RoutingError) Is(target error) bool {
	_, ok := target.(*RoutingError)
	return ok
}

// NoRouteMatchedError is returned when the engine completed without an
// error, a redirect or router state.
type NoRouteMatchedError struct {
	URL string
}

// Error implements the error interface.
func (e *NoRouteMatchedError) Error() string {
	return `No route matches URL "` + e.URL + `"`
}

// Is checks if the error matches the target.
func (e *NoRouteMatchedError) Is(target error) bool {
	if target == util.ErrNotFound {
		return true
	}
	_, ok := target.(*NoRouteMatchedError)
	return ok
}
