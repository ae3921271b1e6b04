// Package cookies reads and writes HTTP cookies with the defaults used
// by server-side rendered pages.
package cookies

import (
	"net/http"
	"net/url"
	"time"
)

// DefaultPath is applied to cookies that do not set a path.
const DefaultPath = "/"

// Cookie describes a cookie to set. Zero values take the package
// defaults: path "/", HttpOnly and SameSite=Lax.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   time.Duration
	Expires  time.Time
	Secure   bool
	// AllowScript clears HttpOnly.
	AllowScript bool
	SameSite    http.SameSite
}

// Get returns the decoded value of the named cookie.
func Get(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	value, err := url.QueryUnescape(c.Value)
	if err != nil {
		return c.Value, true
	}
	return value, true
}

// All returns every cookie of the request as name/value pairs. When a
// name repeats the first value is kept.
func All(r *http.Request) map[string]string {
	cookies := r.Cookies()
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if _, ok := out[c.Name]; ok {
			continue
		}
		value, err := url.QueryUnescape(c.Value)
		if err != nil {
			value = c.Value
		}
		out[c.Name] = value
	}
	return out
}

// Set writes c to w. The value is URL-encoded.
func Set(w http.ResponseWriter, c Cookie) {
	http.SetCookie(w, c.toHTTP())
}

// Delete expires the named cookie on path "/".
func Delete(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:    name,
		Value:   "",
		Path:    DefaultPath,
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
}

func (c Cookie) toHTTP() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    url.QueryEscape(c.Value),
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: !c.AllowScript,
		SameSite: c.SameSite,
	}
	if hc.Path == "" {
		hc.Path = DefaultPath
	}
	if hc.SameSite == 0 {
		hc.SameSite = http.SameSiteLaxMode
	}
	if c.MaxAge > 0 {
		hc.MaxAge = int(c.MaxAge / time.Second)
	}
	return hc
}
