package history

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/routebind/internal/location"
)

// MemoryOption configures a Memory history.
type MemoryOption func(*Memory)

// WithBasename prefixes hrefs created by the history.
func WithBasename(basename string) MemoryOption {
	return func(m *Memory) {
		m.basename = basename
	}
}

// Memory is an in-memory History. It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	entries   []location.Location
	index     int
	basename  string
	listeners map[uint64]Listener
	nextID    uint64
}

// Compile-time interface assertion.
var _ History = (*Memory)(nil)

// NewMemory returns a history with a single entry at "/".
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:   []location.Location{newEntry(location.Location{Pathname: "/"}, location.ActionPop)},
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMemoryWithEntries returns a history holding the given entries,
// positioned at index.
func NewMemoryWithEntries(entries []string, index int, opts ...MemoryOption) (*Memory, error) {
	if len(entries) == 0 {
		return NewMemory(opts...), nil
	}
	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("history index %d out of range [0,%d)", index, len(entries))
	}

	m := NewMemory(opts...)
	m.entries = make([]location.Location, 0, len(entries))
	for _, raw := range entries {
		loc, err := location.Parse(raw)
		if err != nil {
			return nil, err
		}
		m.entries = append(m.entries, newEntry(loc, location.ActionPop))
	}
	m.index = index
	return m, nil
}

func newEntry(loc location.Location, action location.Action) location.Location {
	loc.Action = action
	loc.Key = uuid.NewString()
	return loc
}

// Location returns the current location.
func (m *Memory) Location() location.Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[m.index]
}

// Len returns the number of entries in the stack.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Push appends a new entry after the current one.
func (m *Memory) Push(to location.Location) {
	m.mu.Lock()
	entry := newEntry(to, location.ActionPush)
	m.entries = append(m.entries[:m.index+1], entry)
	m.index++
	m.mu.Unlock()

	m.notify(entry)
}

// Replace overwrites the current entry.
func (m *Memory) Replace(to location.Location) {
	m.mu.Lock()
	entry := newEntry(to, location.ActionReplace)
	m.entries[m.index] = entry
	m.mu.Unlock()

	m.notify(entry)
}

// Go moves n entries through the stack.
func (m *Memory) Go(n int) bool {
	m.mu.Lock()
	next := m.index + n
	if n == 0 || next < 0 || next >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.index = next
	entry := m.entries[next]
	entry.Action = location.ActionPop
	m.entries[next] = entry
	m.mu.Unlock()

	m.notify(entry)
	return true
}

// Back moves one entry back.
func (m *Memory) Back() bool {
	return m.Go(-1)
}

// Forward moves one entry forward.
func (m *Memory) Forward() bool {
	return m.Go(1)
}

// Listen registers fn for location changes.
func (m *Memory) Listen(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// CreateHref renders loc prefixed with the basename.
func (m *Memory) CreateHref(loc location.Location) string {
	return joinBasename(m.basename, location.ToURL(loc))
}

func (m *Memory) notify(loc location.Location) {
	m.mu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(loc)
	}
}
