// internal/reload/watcher.go

// Package reload rebuilds the served session when its model file changes.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/SyedDaiam9101/session-service/internal/metrics"
	"github.com/SyedDaiam9101/session-service/internal/session"
)

// DefaultDebounce collapses bursts of file events into one reload.
const DefaultDebounce = 500 * time.Millisecond

// LoadFunc builds a fresh session for the model at path and returns the
// identity of the loaded model content.
type LoadFunc func(path string) (s *session.Session, modelID string, err error)

// SwapFunc installs a newly built session.
type SwapFunc func(s *session.Session, modelID string) error

// Watcher watches a model file and swaps in a new session after it changes.
// A failed load keeps the current session.
type Watcher struct {
	path     string
	load     LoadFunc
	swap     SwapFunc
	log      *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	reloads atomic.Uint32
	failed  atomic.Uint32
}

// New creates a watcher for path. Call Run to start watching.
func New(path string, load LoadFunc, swap SwapFunc, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		load:     load,
		swap:     swap,
		log:      log,
		debounce: DefaultDebounce,
	}
}

// SetDebounce overrides DefaultDebounce. It must be called before Run.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Run watches until ctx is done. The model's directory is watched rather
// than the file itself so that atomic replacements are observed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() { w.reload(ctx) })

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watcher error", "error", err)
		}
	}
}

// reload builds and swaps in a new session. Nothing is swapped once ctx is
// done.
func (w *Watcher) reload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	count := w.reloads.Add(1)
	w.log.Info("Reloading model", "path", w.path, "count", count)

	s, modelID, err := w.load(w.path)
	if err != nil {
		w.failed.Add(1)
		metrics.RecordReload(false)
		w.log.Error("Failed to reload model, keeping current session", "path", w.path, "error", err)
		return
	}
	if ctx.Err() != nil {
		s.Close()
		return
	}

	if err := w.swap(s, modelID); err != nil {
		w.log.Warn("Session swap did not complete cleanly", "error", err)
	}
	metrics.RecordReload(true)
	w.log.Info("Model reloaded", "path", w.path, "model_id", modelID, "count", count)
}

// ReloadCount returns the number of reload attempts.
func (w *Watcher) ReloadCount() uint32 { return w.reloads.Load() }

// FailedCount returns the number of reload attempts that failed to load.
func (w *Watcher) FailedCount() uint32 { return w.failed.Load() }
