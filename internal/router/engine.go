package router

import (
	"context"
	"runtime/debug"
	"strings"

	"github.com/vyrodovalexey/routebind/internal/history"
	"github.com/vyrodovalexey/routebind/internal/location"
	"github.com/vyrodovalexey/routebind/internal/stacktrace"
)

// Callback receives the outcome of an engine pass. At most one of err,
// redirect and state is set; all three nil means nothing matched.
type Callback func(err error, redirect *Redirect, state *RouterState)

// MatchRequest is the input of an engine pass.
type MatchRequest struct {
	Routes   []*Route
	Location location.Location
	History  history.History
}

// Engine is a callback-style route matching engine. Implementations may
// complete asynchronously and must honour ctx.
type Engine interface {
	Match(ctx context.Context, req MatchRequest, cb Callback)
}

// TreeEngine matches route trees depth-first and runs redirect
// declarations and enter hooks from root to leaf.
type TreeEngine struct{}

// Compile-time interface assertion.
var _ Engine = (*TreeEngine)(nil)

// NewTreeEngine creates a new TreeEngine.
func NewTreeEngine() *TreeEngine {
	return &TreeEngine{}
}

// Match runs the pass on a new goroutine and invokes cb exactly once.
func (e *TreeEngine) Match(ctx context.Context, req MatchRequest, cb Callback) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				cb(&RoutingError{Cause: stacktrace.FromPanic(r, debug.Stack())}, nil, nil)
			}
		}()

		redirect, state, err := e.match(ctx, req)
		cb(err, redirect, state)
	}()
}

func (e *TreeEngine) match(ctx context.Context, req MatchRequest) (*Redirect, *RouterState, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	loc := req.Location
	pathname := loc.Pathname
	if !strings.HasPrefix(pathname, "/") {
		pathname = "/" + pathname
	}

	chain, captures, err := matchRoutes(req.Routes, pathname, pathname, true, nil)
	if err != nil {
		return nil, nil, err
	}
	if chain == nil {
		return nil, nil, nil
	}

	state := &RouterState{
		MatchedRoutes: chain,
		Location:      loc,
		Params:        createParams(captures),
	}

	redirect, err := runEnterHooks(ctx, state)
	if err != nil {
		return nil, nil, err
	}
	if redirect != nil {
		return redirect, nil, nil
	}
	return nil, state, nil
}

// matchRoutes tries routes in order. hasRemaining false means an ancestor
// failed to match and only absolute descendants can still match.
func matchRoutes(
	routes []*Route,
	pathname, remaining string,
	hasRemaining bool,
	captures []capture,
) ([]*Route, []capture, error) {
	for _, route := range routes {
		if route == nil {
			continue
		}
		chain, c, err := matchRouteDeep(route, pathname, remaining, hasRemaining, captures)
		if err != nil || chain != nil {
			return chain, c, err
		}
	}
	return nil, nil, nil
}

func matchRouteDeep(
	route *Route,
	pathname, remaining string,
	hasRemaining bool,
	captures []capture,
) ([]*Route, []capture, error) {
	pattern := route.Path

	if strings.HasPrefix(pattern, "/") {
		remaining = pathname
		hasRemaining = true
		captures = nil
	}

	if hasRemaining && pattern != "" {
		cp, err := compilePattern(pattern)
		if err != nil {
			return nil, nil, &RoutingError{Route: pattern, Cause: err}
		}

		rest, got, ok := cp.match(remaining)
		if ok {
			remaining = rest
			captures = append(captures[:len(captures):len(captures)], got...)
		} else {
			hasRemaining = false
		}

		if hasRemaining && remaining == "" {
			chain := []*Route{route}
			if route.Index != nil {
				chain = append(chain, route.Index)
			}
			return chain, captures, nil
		}
	}

	if hasRemaining || len(route.Children) > 0 {
		chain, c, err := matchRoutes(route.Children, pathname, remaining, hasRemaining, captures)
		if err != nil {
			return nil, nil, err
		}
		if chain != nil {
			return append([]*Route{route}, chain...), c, nil
		}
	}

	return nil, nil, nil
}

// runEnterHooks processes redirect declarations and enter hooks from root
// to leaf, stopping at the first redirect or error.
func runEnterHooks(ctx context.Context, state *RouterState) (*Redirect, error) {
	for i, route := range state.MatchedRoutes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if route.Redirect != nil {
			redirect, err := redirectFor(state, i, route.Redirect)
			if err != nil {
				return nil, &RoutingError{Route: route.Path, Cause: err}
			}
			return redirect, nil
		}

		if route.OnEnter == nil {
			continue
		}

		var target *string
		replace := func(to string) {
			if target == nil {
				target = &to
			}
		}
		if err := route.OnEnter(ctx, *state, replace); err != nil {
			return nil, &RoutingError{Route: route.Path, Cause: err}
		}
		if target != nil {
			loc, err := location.Parse(*target)
			if err != nil {
				return nil, &RoutingError{Route: route.Path, Cause: err}
			}
			loc.Action = location.ActionReplace
			return &Redirect{Location: loc, Status: DefaultRedirectStatus}, nil
		}
	}
	return nil, nil
}

// redirectFor resolves the target of the redirect declared by the route at
// index idx of the chain.
func redirectFor(state *RouterState, idx int, rd *RouteRedirect) (*Redirect, error) {
	if rd.To == "" {
		return nil, ErrEmptyRedirect
	}
	loc := state.Location

	var pathname string
	switch {
	case strings.HasPrefix(rd.To, "/"):
		p, err := formatPattern(rd.To, state.Params)
		if err != nil {
			return nil, err
		}
		pathname = p
	default:
		parent := routePattern(state.MatchedRoutes, idx-1)
		p, err := formatPattern(strings.TrimRight(parent, "/")+"/"+rd.To, state.Params)
		if err != nil {
			return nil, err
		}
		pathname = p
	}

	target := location.Location{
		Pathname: pathname,
		Search:   loc.Search,
		Query:    loc.Query,
		State:    loc.State,
		Action:   location.ActionReplace,
	}
	if rd.Query != nil {
		target = target.WithQuery(rd.Query)
	}

	status := rd.Status
	if status == 0 {
		status = DefaultRedirectStatus
	}
	return &Redirect{Location: target, Status: status}, nil
}

// routePattern joins the patterns of routes[0..idx], starting over at the
// nearest absolute pattern.
func routePattern(routes []*Route, idx int) string {
	parent := ""
	for i := idx; i >= 0; i-- {
		pattern := routes[i].Path
		parent = strings.TrimRight(pattern, "/") + "/" + parent
		if strings.HasPrefix(pattern, "/") {
			break
		}
	}
	return "/" + parent
}
