// Package location defines the Location value object shared by the
// router and navigation histories.
package location

import (
	"fmt"
	"net/url"
	"strings"
)

// Action is the kind of navigation that produced a Location.
type Action string

// Navigation actions.
const (
	ActionPush    Action = "PUSH"
	ActionReplace Action = "REPLACE"
	ActionPop     Action = "POP"
)

// Location describes a position in the application: path, query and
// auxiliary navigation state. Search and Hash keep their leading "?" and
// "#" when non-empty.
type Location struct {
	Pathname string
	Search   string
	Hash     string
	Query    url.Values
	State    any
	Action   Action
	Key      string
}

// Parse builds a Location from a path such as "/user/1?tab=posts#top".
// Absolute URLs are accepted; their scheme and host are dropped.
func Parse(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid location %q: %w", raw, err)
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return Location{}, fmt.Errorf("invalid query in location %q: %w", raw, err)
	}

	loc := Location{
		Pathname: u.EscapedPath(),
		Query:    query,
		Action:   ActionPop,
	}
	if loc.Pathname == "" {
		loc.Pathname = "/"
	} else if !strings.HasPrefix(loc.Pathname, "/") {
		loc.Pathname = "/" + loc.Pathname
	}
	if u.RawQuery != "" {
		loc.Search = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		loc.Hash = "#" + u.EscapedFragment()
	}
	return loc, nil
}

// MustParse is like Parse but panics on error. Intended for literals.
func MustParse(raw string) Location {
	loc, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return loc
}

// ToURL renders a Location as a path-relative URL. An empty pathname
// renders as "/".
func ToURL(l Location) string {
	pathname := l.Pathname
	if pathname == "" {
		pathname = "/"
	}
	var b strings.Builder
	b.Grow(len(pathname) + len(l.Search) + len(l.Hash))
	b.WriteString(pathname)
	if l.Search != "" && l.Search != "?" {
		if !strings.HasPrefix(l.Search, "?") {
			b.WriteByte('?')
		}
		b.WriteString(l.Search)
	}
	if l.Hash != "" && l.Hash != "#" {
		if !strings.HasPrefix(l.Hash, "#") {
			b.WriteByte('#')
		}
		b.WriteString(l.Hash)
	}
	return b.String()
}

// String implements fmt.Stringer.
func (l Location) String() string {
	return ToURL(l)
}

// WithQuery returns a copy of l whose Query and Search reflect q.
func (l Location) WithQuery(q url.Values) Location {
	l.Query = q
	if encoded := q.Encode(); encoded != "" {
		l.Search = "?" + encoded
	} else {
		l.Search = ""
	}
	return l
}

// WithPathname returns a copy of l pointing at pathname, keeping search
// and hash.
func (l Location) WithPathname(pathname string) Location {
	l.Pathname = pathname
	return l
}
