// Package watch re-runs an action when C# sources under a directory change.
package watch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/csflow/pkg/config"
	"github.com/panbanda/csflow/pkg/syntax/csharp"
)

// DefaultDebounce is how long a file must be quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// Callback receives the files that changed in one debounce window.
type Callback func(ctx context.Context, paths []string)

// Watcher monitors a directory tree for source changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	path      string
	callback  Callback
	out       io.Writer
	colored   bool

	mu      sync.Mutex
	pending map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period; values <= 0 select DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOutput sets where banners are printed; the default is stdout.
func WithOutput(out io.Writer, colored bool) Option {
	return func(w *Watcher) {
		w.out = out
		w.colored = colored
	}
}

// NewWatcher creates a watcher for path. cb runs on one goroutine, so two
// batches never overlap.
func NewWatcher(path string, cfg *config.Config, cb Callback, opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	w := &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  DefaultDebounce,
		path:      path,
		callback:  cb,
		out:       os.Stdout,
		colored:   true,
		pending:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Watcher) excludedDir(name string) bool {
	return slices.Contains(w.config.Exclude.Dirs, name)
}

// addTree watches root and every directory below it that is not excluded.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && w.excludedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) printf(attr color.Attribute, format string, args ...any) {
	if w.colored {
		color.New(attr).Fprintf(w.out, format, args...)
		return
	}
	fmt.Fprintf(w.out, format, args...)
}

// Start watches until ctx is cancelled or the watcher is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.path); err != nil {
		return err
	}

	w.printf(color.FgCyan, "Watching for changes in %s...\nPress Ctrl+C to stop\n\n", w.path)

	batches := make(chan []string)
	go w.processDebounced(ctx, batches)
	go func() {
		for paths := range batches {
			w.run(ctx, paths)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.printf(color.FgRed, "Watch error: %v\n", err)
		}
	}
}

// handleEvent records a change to a source file and starts watching new
// directories.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	path := event.Name

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.excludedDir(info.Name()) {
				_ = w.addTree(path)
			}
			return
		}
	}

	rel, err := filepath.Rel(w.path, path)
	if err != nil {
		rel = path
	}
	if !csharp.IsSource(path) || w.config.ShouldExclude(rel) {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// processDebounced sends batches of files that have been quiet for the
// debounce period and closes batches when ctx is done.
func (w *Watcher) processDebounced(ctx context.Context, batches chan<- []string) {
	defer close(batches)
	ticker := time.NewTicker(w.debounce / 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ready := w.takeReady(time.Now()); len(ready) > 0 {
				select {
				case batches <- ready:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// takeReady removes and returns the pending files quiet since before now
// minus the debounce period.
func (w *Watcher) takeReady(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, lastMod := range w.pending {
		if now.Sub(lastMod) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func (w *Watcher) run(ctx context.Context, paths []string) {
	rels := make([]string, len(paths))
	for i, p := range paths {
		if rel, err := filepath.Rel(w.path, p); err == nil {
			rels[i] = rel
		} else {
			rels[i] = p
		}
	}
	w.printf(color.FgYellow, "\nChanged: %s\n", strings.Join(rels, ", "))
	fmt.Fprintln(w.out, strings.Repeat("-", 40))

	if w.callback != nil {
		w.callback(ctx, paths)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the watched directories.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
