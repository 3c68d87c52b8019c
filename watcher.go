package promport

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadCallback is invoked with the freshly loaded config after the watched
// file changes. A callback error is logged; it stops neither the watcher nor
// the remaining callbacks.
type ReloadCallback func(*Config) error

// ConfigWatcher monitors a config file and drives reload callbacks when it
// changes. It watches the parent directory so atomic writes (the temp file +
// rename pattern editors and config management tools use) are detected, and
// debounces event bursts from a single save.
type ConfigWatcher struct {
	ctx       context.Context
	cancel    context.CancelFunc
	fsWatcher *fsnotify.Watcher
	path      string

	debounce time.Duration
	timerMu  sync.Mutex
	timer    *time.Timer

	mu        sync.RWMutex
	callbacks []ReloadCallback
	closed    bool
}

// WatcherOption configures a ConfigWatcher.
type WatcherOption func(*ConfigWatcher)

// WithDebounceDelay sets the debounce window for file change events.
// Default is 100ms. A longer window helps with editors that trigger several
// events per save.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *ConfigWatcher) {
		w.debounce = d
	}
}

// NewConfigWatcher creates a watcher for the config file at path. The path is
// resolved to an absolute path and its parent directory is watched.
func NewConfigWatcher(path string, opts ...WatcherOption) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &ConfigWatcher{
		ctx:       ctx,
		cancel:    cancel,
		fsWatcher: fsWatcher,
		path:      absPath,
		debounce:  100 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(w)
	}

	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		cancel()
		if closeErr := fsWatcher.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close watcher after add failure")
		}
		return nil, err
	}

	return w, nil
}

// Path returns the absolute path being watched.
func (w *ConfigWatcher) Path() string {
	return w.path
}

// OnChange registers a callback invoked with the new config after each
// successful reload. Callbacks run in registration order.
func (w *ConfigWatcher) OnChange(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Run processes file events until the context is canceled or the watcher is
// closed. Only Write and Create events on the watched file schedule a reload;
// Chmod noise from indexers and antivirus scanners is ignored.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	target := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event, target) {
				w.scheduleReload()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("config watcher error")
		}
	}
}

// relevant reports whether an event should count as a change to the watched
// file.
func (w *ConfigWatcher) relevant(event fsnotify.Event, target string) bool {
	if filepath.Base(event.Name) != target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

// scheduleReload arms the debounce timer, extending the window if it is
// already open.
func (w *ConfigWatcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.ctx.Done():
			return // closed while the debounce window was open
		default:
		}
		w.reload()
	})
}

func (w *ConfigWatcher) stopTimer() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// reload loads the config from disk and fans it out to the callbacks.
func (w *ConfigWatcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		log.Error().Err(err).Str("path", w.path).Msg("failed to reload config")
		return
	}

	log.Info().Str("path", w.path).Msg("config file reloaded")

	w.mu.RLock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb(cfg); err != nil {
			log.Error().Err(err).Msg("config reload callback error")
		}
	}
}

// Close stops watching and releases resources. Returns ErrWatcherClosed if
// already closed.
func (w *ConfigWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	w.closed = true

	// Cancel first so a debounce timer that fires mid-close does nothing.
	w.cancel()

	return w.fsWatcher.Close()
}
