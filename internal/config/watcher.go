package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/routebind/internal/observability"
)

// DefaultDebounce is how long the watcher waits after the last write
// before reloading.
const DefaultDebounce = 100 * time.Millisecond

// ReloadFunc receives every configuration that loaded and validated after
// a change.
type ReloadFunc func(*Config)

// ReloadErrorFunc receives load, validation and fsnotify errors. The
// previous configuration stays current when it is called.
type ReloadErrorFunc func(error)

// Watcher reloads a config file when it changes on disk and hands each
// valid result to a ReloadFunc.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	onReload ReloadFunc
	onError  ReloadErrorFunc
	logger   observability.Logger
	debounce time.Duration

	mu      sync.RWMutex
	current *Config
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period that must follow a write before the
// file is reloaded.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the watcher logger.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// OnReloadError registers fn for failed reloads.
func OnReloadError(fn ReloadErrorFunc) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// NewWatcher returns a stopped Watcher for the file at path.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		fs:       fs,
		onReload: onReload,
		logger:   observability.NopLogger(),
		debounce: DefaultDebounce,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start loads the file once and then follows changes until ctx is done or
// Stop is called. The initial load does not call the ReloadFunc. Calling
// Start on a running watcher does nothing.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	cfg, err := loadValidated(w.path)
	if err != nil {
		return err
	}
	// The parent directory is watched: editors save by renaming over the
	// file, which drops a watch on the file itself.
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.current = cfg
	w.running = true
	w.logger.Info("watching configuration", observability.String("path", w.path))

	go w.loop(ctx)
	return nil
}

// Stop ends the watch loop and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stop)
		<-w.done
	}
	return w.fs.Close()
}

// Current returns the configuration that loaded last, or nil before the
// first successful load.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Reload reads the file now, outside the fsnotify loop. An invalid file
// leaves Current unchanged and is returned without calling the
// ReloadFunc.
func (w *Watcher) Reload() error {
	cfg, err := loadValidated(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	if w.onReload != nil {
		w.onReload(cfg)
	}
	return nil
}

func loadValidated(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("configuration watch canceled")
			return
		case <-w.stop:
			w.logger.Debug("configuration watch stopped")
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				w.logger.Debug("configuration changed",
					observability.String("path", ev.Name),
					observability.String("op", ev.Op.String()),
				)
				timer.Reset(w.debounce)
			}
		case <-timer.C:
			w.reloadFromEvent()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watch error", observability.Error(err))
			w.fail(err)
		}
	}
}

// relevant reports whether ev wrote or replaced the watched file.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	return filepath.Clean(ev.Name) == w.path && ev.Op&(fsnotify.Write|fsnotify.Create) != 0
}

func (w *Watcher) reloadFromEvent() {
	if err := w.Reload(); err != nil {
		w.logger.Error("configuration reload failed, keeping previous routes",
			observability.String("path", w.path),
			observability.Error(err),
		)
		w.fail(err)
		return
	}
	w.logger.Info("configuration reloaded",
		observability.String("path", w.path),
		observability.Int("routes", len(w.Current().Spec.Routes)),
	)
}

func (w *Watcher) fail(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
