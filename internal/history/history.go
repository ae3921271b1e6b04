// Package history provides navigation histories: an abstraction over the
// current location plus the ability to change it.
package history

import (
	"net/http"
	"strings"

	"github.com/vyrodovalexey/routebind/internal/location"
)

// Listener is notified after every location change.
type Listener func(location.Location)

// History is the navigation history consumed by the router.
type History interface {
	// Location returns the current location.
	Location() location.Location
	// Push appends a new entry after the current one, discarding any
	// forward entries.
	Push(to location.Location)
	// Replace overwrites the current entry.
	Replace(to location.Location)
	// Go moves n entries back (negative) or forward (positive). Moves
	// outside the stack are ignored and reported as false.
	Go(n int) bool
	Back() bool
	Forward() bool
	// Listen registers fn and returns a function that removes it.
	Listen(fn Listener) (unlisten func())
	// CreateHref renders a location as an href for this history.
	CreateHref(loc location.Location) string
}

// PushLocation parses raw and pushes it onto h.
func PushLocation(h History, raw string) error {
	loc, err := location.Parse(raw)
	if err != nil {
		return err
	}
	h.Push(loc)
	return nil
}

// ReplaceLocation parses raw and replaces the current entry of h.
func ReplaceLocation(h History, raw string) error {
	loc, err := location.Parse(raw)
	if err != nil {
		return err
	}
	h.Replace(loc)
	return nil
}

// FromRequest returns a memory history positioned at the request URI,
// the usual starting point for server-side rendering.
func FromRequest(r *http.Request, opts ...MemoryOption) (*Memory, error) {
	uri := r.RequestURI
	if uri == "" {
		uri = r.URL.RequestURI()
	}
	return NewMemoryWithEntries([]string{uri}, 0, opts...)
}

func joinBasename(basename, path string) string {
	if basename == "" {
		return path
	}
	return strings.TrimSuffix(basename, "/") + path
}
