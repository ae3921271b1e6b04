package location

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		pathname string
		search   string
		hash     string
		query    url.Values
	}{
		{name: "root", raw: "/", pathname: "/", query: url.Values{}},
		{name: "empty", raw: "", pathname: "/", query: url.Values{}},
		{name: "relative path", raw: "user/1", pathname: "/user/1", query: url.Values{}},
		{
			name:     "query and hash",
			raw:      "/user/1?tab=posts&page=2#top",
			pathname: "/user/1",
			search:   "?tab=posts&page=2",
			hash:     "#top",
			query:    url.Values{"tab": {"posts"}, "page": {"2"}},
		},
		{
			name:     "absolute URL drops host",
			raw:      "https://example.com/about?x=1",
			pathname: "/about",
			search:   "?x=1",
			query:    url.Values{"x": {"1"}},
		},
		{name: "escaped path kept", raw: "/files/a%20b", pathname: "/files/a%20b", query: url.Values{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			loc, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.pathname, loc.Pathname)
			assert.Equal(t, tt.search, loc.Search)
			assert.Equal(t, tt.hash, loc.Hash)
			assert.Equal(t, tt.query, loc.Query)
			assert.Equal(t, ActionPop, loc.Action)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Parse("/a?%zz")
	assert.Error(t, err)

	_, err = Parse("http://[::1")
	assert.Error(t, err)

	assert.Panics(t, func() { MustParse("http://[::1") })
}

func TestToURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		loc      Location
		expected string
	}{
		{name: "zero value", loc: Location{}, expected: "/"},
		{name: "path only", loc: Location{Pathname: "/about"}, expected: "/about"},
		{name: "search and hash", loc: Location{Pathname: "/a", Search: "?b=1", Hash: "#c"}, expected: "/a?b=1#c"},
		{name: "search without prefix", loc: Location{Pathname: "/a", Search: "b=1"}, expected: "/a?b=1"},
		{name: "bare separators dropped", loc: Location{Pathname: "/a", Search: "?", Hash: "#"}, expected: "/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, ToURL(tt.loc))
			assert.Equal(t, tt.expected, tt.loc.String())
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"/", "/user/1?tab=posts#top", "/files/a%20b"} {
		assert.Equal(t, raw, ToURL(MustParse(raw)))
	}
}

func TestWithQuery(t *testing.T) {
	t.Parallel()

	loc := MustParse("/search?q=old")
	updated := loc.WithQuery(url.Values{"q": {"new"}})

	assert.Equal(t, "/search?q=new", ToURL(updated))
	assert.Equal(t, "/search?q=old", ToURL(loc))
	assert.Equal(t, "/search", ToURL(loc.WithQuery(nil)))
	assert.Equal(t, "/other?q=old", ToURL(loc.WithPathname("/other")))
}
