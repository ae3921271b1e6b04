package router

import (
	"context"
	"net/http"
	"net/url"

	jsoniter "github.com/json-iterator/go"

	"github.com/vyrodovalexey/routebind/internal/location"
)

// DefaultRedirectStatus is used when a redirect does not declare a status.
const DefaultRedirectStatus = http.StatusFound

// ReplaceFunc requests a redirect to the given path from an enter hook.
type ReplaceFunc func(to string)

// EnterHook runs when its route is part of a match. Calling replace turns
// the match into a redirect; returning an error fails the match.
type EnterHook func(ctx context.Context, state RouterState, replace ReplaceFunc) error

// Route is a node of the route tree. Routes are owned by the caller and
// never modified by matching.
type Route struct {
	// Name is an optional identifier used in logs.
	Name string
	// Path is the pattern matched by this route. An empty path makes the
	// route a transparent container for its children. A path starting
	// with "/" is matched against the full pathname.
	Path string
	// Children are tried in declaration order.
	Children []*Route
	// Index is appended to the chain when this route matches the
	// pathname exactly.
	Index *Route
	// Redirect turns a match of this route into a redirect.
	Redirect *RouteRedirect
	// OnEnter runs after the tree matched, root to leaf.
	OnEnter EnterHook
	// Preload names a registered preload function.
	Preload string
	// PreloadBlocking makes the preload wait for all preloads of
	// preceding routes.
	PreloadBlocking bool
	// View is an opaque value handed to the renderer.
	View any
}

// RouteRedirect declares a redirect target. A To starting with "/" is an
// absolute pattern; anything else is resolved against the parent
// pattern. Parameters in To are filled from the match.
type RouteRedirect struct {
	To     string
	Status int
	// Query replaces the query of the matched location when set.
	Query url.Values
}

// Param is one path parameter. Repeated names (several splats for
// instance) accumulate values in order.
type Param struct {
	Key    string
	Values []string
}

// Value returns the first value of the parameter.
func (p Param) Value() string {
	if len(p.Values) == 0 {
		return ""
	}
	return p.Values[0]
}

// Params holds path parameters in the order their names first appear in
// the matched patterns.
type Params []Param

// Get returns the first value for key, or "" when absent.
func (p Params) Get(key string) string {
	for _, param := range p {
		if param.Key == key {
			return param.Value()
		}
	}
	return ""
}

// Values returns every value captured for key.
func (p Params) Values(key string) []string {
	for _, param := range p {
		if param.Key == key {
			return param.Values
		}
	}
	return nil
}

// Has reports whether key was captured.
func (p Params) Has(key string) bool {
	for _, param := range p {
		if param.Key == key {
			return true
		}
	}
	return false
}

// Keys returns the parameter names in order.
func (p Params) Keys() []string {
	keys := make([]string, len(p))
	for i, param := range p {
		keys[i] = param.Key
	}
	return keys
}

// Map returns the first value of each parameter.
func (p Params) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, param := range p {
		m[param.Key] = param.Value()
	}
	return m
}

// add appends value under key, keeping the position of the first
// occurrence.
func (p Params) add(key, value string) Params {
	for i := range p {
		if p[i].Key == key {
			p[i].Values = append(p[i].Values, value)
			return p
		}
	}
	return append(p, Param{Key: key, Values: []string{value}})
}

// MarshalJSON encodes params as an object whose keys keep their order.
// Single values encode as strings, repeated ones as arrays.
func (p Params) MarshalJSON() ([]byte, error) {
	stream := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowStream(nil)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, param := range p {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(param.Key)
		if len(param.Values) == 1 {
			stream.WriteString(param.Values[0])
		} else {
			stream.WriteVal(param.Values)
		}
	}
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// RouterState is the outcome of a successful match.
type RouterState struct {
	// MatchedRoutes is the chain of routes from root to leaf.
	MatchedRoutes []*Route
	// Location is the location that was matched.
	Location location.Location
	// Params are the captured path parameters.
	Params Params
}

// MatchResult is either *Redirect or *Matched.
type MatchResult interface {
	isMatchResult()
}

// Redirect is the result of a match that ended in a redirect.
type Redirect struct {
	Location location.Location
	Status   int
}

func (*Redirect) isMatchResult() {}

// URL returns the redirect target as a path-relative URL.
func (r *Redirect) URL() string {
	return location.ToURL(r.Location)
}

// Matched is the result of a match that produced router state.
type Matched struct {
	State RouterState
}

func (*Matched) isMatchResult() {}
