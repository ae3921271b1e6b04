package preload

import (
	"errors"
	"fmt"
	"time"
)

// EventType identifies a preload lifecycle event.
type EventType string

// Preload lifecycle events.
const (
	EventStarted  EventType = "PRELOAD_STARTED"
	EventFinished EventType = "PRELOAD_FINISHED"
	EventFailed   EventType = "PRELOAD_FAILED"
)

// Event describes one preload run of a matched location.
type Event struct {
	Type EventType
	// RoutePath is the parametrized path of the matched chain.
	RoutePath string
	Location  string
	// Duration and Err are set on finish and failure.
	Duration time.Duration
	Err      error
}

// Observer receives preload events.
type Observer interface {
	OnPreloadEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnPreloadEvent calls f.
func (f ObserverFunc) OnPreloadEvent(e Event) {
	f(e)
}

// ErrUnknownPreload is the cause of the PreloadError returned when a route
// names a preload that is not registered.
var ErrUnknownPreload = errors.New("unknown preload")

// PreloadError reports the failure of the preload of one route.
type PreloadError struct {
	Route   string
	Preload string
	Cause   error
}

// Error implements the error interface.
func (e *PreloadError) Error() string {
	return fmt.Sprintf("preload %q failed for route %q: %v", e.Preload, e.Route, e.Cause)
}

// Unwrap returns the underlying error.
func (e *PreloadError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *PreloadError) Is(target error) bool {
	_, ok := target.(*PreloadError)
	return ok
}
