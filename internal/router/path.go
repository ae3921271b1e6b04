package router

import "strings"

// GetRoutePath reconstructs the parametrized path of a match, e.g.
// "user/:id/post/:postId". Routes without a path are skipped and one
// leading and one trailing "/" is stripped from each pattern. An empty
// result is returned as "/".
func GetRoutePath(state RouterState) string {
	return RoutePath(state.MatchedRoutes)
}

// RoutePath is GetRoutePath for a bare route chain.
func RoutePath(routes []*Route) string {
	parts := make([]string, 0, len(routes))
	for _, route := range routes {
		if route == nil || route.Path == "" {
			continue
		}
		p := strings.TrimPrefix(route.Path, "/")
		p = strings.TrimSuffix(p, "/")
		parts = append(parts, p)
	}

	if path := strings.Join(parts, "/"); path != "" {
		return path
	}
	return "/"
}
