// Package preload runs the data loading functions declared by the routes
// of a match before a page is rendered.
//
// Routes name their preload function; the functions themselves live in a
// Registry. A Runner executes the preloads of a matched route chain,
// concurrently unless a route asks to wait for its ancestors, and reports
// PRELOAD_STARTED, PRELOAD_FINISHED and PRELOAD_FAILED events.
package preload

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/vyrodovalexey/routebind/internal/cookies"
	"github.com/vyrodovalexey/routebind/internal/httpclient"
	"github.com/vyrodovalexey/routebind/internal/location"
	"github.com/vyrodovalexey/routebind/internal/router"
)

// Func loads the data of one route into pc.Data.
type Func func(ctx context.Context, pc *Context) error

// Context is handed to a preload function.
type Context struct {
	Route    *router.Route
	Location location.Location
	Params   router.Params
	// HTTP is nil when the runner was not given a client.
	HTTP *httpclient.Client
	Data *Data

	cookies map[string]string
}

type requestCookiesKey struct{}

// WithRequestCookies returns a context carrying the cookies of the request
// being rendered. Preload functions read them through Context.Cookie.
func WithRequestCookies(ctx context.Context, values map[string]string) context.Context {
	return context.WithValue(ctx, requestCookiesKey{}, values)
}

func requestCookies(ctx context.Context) map[string]string {
	values, _ := ctx.Value(requestCookiesKey{}).(map[string]string)
	return values
}

// Cookie returns the named cookie of the request being rendered.
func (pc *Context) Cookie(name string) (string, bool) {
	v, ok := pc.cookies[name]
	return v, ok
}

// Data is the concurrency-safe store preload functions write into.
type Data struct {
	mu      sync.RWMutex
	values  map[string]any
	set     []cookies.Cookie
	deleted []string
}

// NewData creates an empty store.
func NewData() *Data {
	return &Data{values: make(map[string]any)}
}

// Set stores value under key.
func (d *Data) Set(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[key] = value
}

// Get returns the value stored under key.
func (d *Data) Get(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	return v, ok
}

// Snapshot returns a copy of the stored values.
func (d *Data) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// SetCookie queues c to be written on the response.
func (d *Data) SetCookie(c cookies.Cookie) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set = append(d.set, c)
}

// DeleteCookie queues the expiry of the named cookie.
func (d *Data) DeleteCookie(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, name)
}

// WriteCookies writes the queued cookie changes to w, deletions last.
func (d *Data) WriteCookies(w http.ResponseWriter) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.set {
		cookies.Set(w, c)
	}
	for _, name := range d.deleted {
		cookies.Delete(w, name)
	}
}

// Registry maps preload names to functions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds fn under name. Names must be unique.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("preload name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("preload %q: function cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("preload %q is already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, fn Func) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
