package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/banshee-data/scanwedge/internal/monitoring"
	"github.com/banshee-data/scanwedge/internal/session"
)

// DefaultDebounce collapses the burst of events an editor produces on save.
const DefaultDebounce = 100 * time.Millisecond

var logf = monitoring.Tagged("config")

// Watcher reloads a config file when it changes and hands every valid
// version to the registered callbacks. An invalid file is logged and the
// previous configuration stays in force.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)

	errs chan error
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher loads path and returns a watcher that is not yet running.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		current:  cfg,
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}, nil
}

// Config returns the most recent valid configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers cb. Callbacks run on the watcher goroutine; register
// them before Start.
func (w *Watcher) OnChange(cb func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, cb)
}

// Errors reports reload failures. Only the latest unread error is kept.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Start watches the directory holding the file, so replace-on-save editors
// are seen as well as in-place writes.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	cfg, err := Load(w.path)
	if err != nil {
		w.report(fmt.Errorf("reload %s: %w", w.path, err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := append([]func(*Config){}, w.onChange...)
	w.mu.Unlock()

	logf("reloaded %s", w.path)
	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (w *Watcher) report(err error) {
	logf("%v", err)
	select {
	case w.errs <- err:
	default:
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	var err error
	if w.watcher != nil {
		err = w.watcher.Close()
	}
	w.wg.Wait()
	return err
}

// ApplyTiming returns a callback that pushes reloaded delays and silence
// timeout into modes. The other fields only take effect on restart.
func ApplyTiming(modes *session.Modes) func(*Config) {
	return func(c *Config) {
		if err := modes.SetTiming(c.GetTiming(), c.GetSilenceTimeout()); err != nil {
			logf("timing not applied: %v", err)
		}
	}
}
