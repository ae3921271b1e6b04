// Package router matches a hierarchical route tree against a location.
//
// A match walks the tree depth-first, collecting the chain of routes from
// the root to the matched leaf together with the path parameters captured
// along the way. Routes may declare redirects or enter hooks; the first
// one in the chain (root to leaf) that redirects wins.
//
// # Pattern Syntax
//
//   - :name captures one path segment
//   - * lazily captures any text as "splat"
//   - ** greedily captures any text as "splat"
//   - (...) marks an optional group
//
// Matching is case-insensitive and tolerates a trailing slash.
//
// # Usage
//
//	result, err := router.MatchRoutesAgainstLocation(ctx, routes,
//	    router.WithURL("/user/1/post/2"),
//	)
//	if err != nil {
//	    // *RoutingError, *NoRouteMatchedError or ctx.Err()
//	}
//	switch r := result.(type) {
//	case *router.Redirect:
//	    // r.Location, r.Status
//	case *router.Matched:
//	    path := router.GetRoutePath(r.State) // "user/:id/post/:postId"
//	}
package router
