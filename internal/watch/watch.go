// Package watch re-runs the encoder when template files change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pasket/internal/logging"
)

// DefaultDebounce is how long a file must stay quiet before a rebuild.
const DefaultDebounce = 500 * time.Millisecond

// RebuildFunc receives the settled paths of one batch, sorted. Calls are
// serial.
type RebuildFunc func(ctx context.Context, changed []string) error

// Options configures a Watcher.
type Options struct {
	Dirs     []string
	Suffix   string // only paths with this suffix count; empty means ".java"
	Debounce time.Duration
	Rebuild  RebuildFunc
}

// Stats counts watcher activity.
type Stats struct {
	Events        int
	Rebuilds      int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher watches template directories and debounces changes into
// rebuilds.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	opts     Options
	pending  map[string]time.Time
	stats    Stats
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	tickRate time.Duration
}

// New creates a watcher over opts.Dirs. Nothing is watched until Start.
func New(opts Options) (*Watcher, error) {
	if opts.Rebuild == nil {
		return nil, fmt.Errorf("watch: rebuild callback is required")
	}
	if len(opts.Dirs) == 0 {
		return nil, fmt.Errorf("watch: no directories")
	}
	if opts.Suffix == "" {
		opts.Suffix = ".java"
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	return &Watcher{
		watcher:  w,
		opts:     opts,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		tickRate: min(opts.Debounce/5, 100*time.Millisecond),
	}, nil
}

// Start adds the directories and runs the event loop in a goroutine. It
// fails when a directory cannot be watched.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.opts.Dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		logging.Watch("watching %s", dir)
	}
	go w.run(ctx)
	return nil
}

// Stop ends the event loop, waits for it and releases the watcher. A
// rebuild in progress finishes first.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		logging.WatchError("closing watcher: %v", err)
	}
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context done")
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("watcher: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, w.opts.Suffix) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	logging.WatchDebug("%s %s", event.Op, event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.pending[filepath.Clean(event.Name)] = now
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = now
}

// flush rebuilds once for every path that has been quiet for the debounce
// window.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.opts.Debounce {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()
	if len(settled) == 0 {
		return
	}
	sort.Strings(settled)

	logging.Watch("rebuilding after %d changed file(s)", len(settled))
	err := w.opts.Rebuild(ctx, settled)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Rebuilds++
	if err != nil {
		w.stats.Errors++
		logging.WatchError("rebuild: %v", err)
	}
}
