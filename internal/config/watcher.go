package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/springmesh/apigw/internal/observability"
)

// ReloadHook receives every configuration that passes validation after
// a file change.
type ReloadHook func(*Config)

// ErrorCallback is called when a reload attempt fails.
type ErrorCallback func(error)

// Watcher reloads the configuration file on change and fans the new
// config out to registered hooks. Write events are debounced since
// editors produce several of them for a single save, and a config that
// fails validation never replaces the last good one.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	delay   time.Duration
	logger  observability.Logger
	onError ErrorCallback

	mu      sync.RWMutex
	hooks   []ReloadHook
	last    *Config
	running bool

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay for file changes.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.delay = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithErrorCallback sets the callback invoked on failed reloads.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.onError = callback
	}
}

// NewWatcher creates a watcher for the given configuration file.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:      absPath,
		fsw:       fsw,
		delay:     100 * time.Millisecond,
		logger:    observability.NopLogger(),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// OnReload registers a hook that runs after every successful reload.
// Hooks run in registration order on the watch goroutine.
func (w *Watcher) OnReload(hook ReloadHook) {
	if hook == nil {
		return
	}

	w.mu.Lock()
	w.hooks = append(w.hooks, hook)
	w.mu.Unlock()
}

// Start loads and validates the file once, then begins watching it.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	cfg, err := loadValidated(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.last = cfg
	w.mu.Unlock()

	// Watch the directory: editors replace files on save, which would
	// otherwise drop a watch on the file itself.
	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.logger.Info("started watching configuration file",
		observability.String("path", w.path))

	go w.loop(ctx)

	return nil
}

// Stop stops watching the configuration file.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh

	return w.fsw.Close()
}

// GetLastConfig returns the last configuration that passed validation.
func (w *Watcher) GetLastConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

// loop consumes file events until the watcher stops.
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.stoppedCh)

	debounce := time.NewTimer(w.delay)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped due to context cancellation")
			return

		case <-w.stopCh:
			w.logger.Info("config watcher stopped")
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("config file changed",
				observability.String("op", event.Op.String()))
			debounce.Reset(w.delay)

		case <-debounce.C:
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.fail("config watcher error", err)
		}
	}
}

// relevant reports whether the event is a write to the watched file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

// reload swaps in the changed configuration and runs the hooks.
func (w *Watcher) reload() {
	w.logger.Info("reloading configuration",
		observability.String("path", w.path))

	cfg, err := loadValidated(w.path)
	if err != nil {
		w.fail("keeping last good configuration", err)
		return
	}

	w.mu.Lock()
	w.last = cfg
	hooks := make([]ReloadHook, len(w.hooks))
	copy(hooks, w.hooks)
	w.mu.Unlock()

	for _, hook := range hooks {
		hook(cfg)
	}
}

// fail logs a watcher failure and notifies the error callback.
func (w *Watcher) fail(msg string, err error) {
	w.logger.Error(msg, observability.Error(err))
	if w.onError != nil {
		w.onError(err)
	}
}

// loadValidated loads the file and runs it through validation.
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
