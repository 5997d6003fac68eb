// Package watch imports sheet files as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of write events an editor or copy emits.
const DefaultDebounce = 150 * time.Millisecond

// ImportFunc handles one settled file.
type ImportFunc func(ctx context.Context, path string) error

// Watcher calls an ImportFunc for every .json file created or rewritten in a
// directory. Files are handled one at a time.
type Watcher struct {
	dir      string
	fn       ImportFunc
	debounce time.Duration
	logger   *slog.Logger
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

func New(dir string, fn ImportFunc, opts ...Option) *Watcher {
	w := &Watcher{dir: dir, fn: fn, debounce: DefaultDebounce, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. Import failures are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.InfoContext(ctx, "watching for sheets", "dir", w.dir)

	stop := make(chan struct{})
	ready := make(chan string)
	pending := make(map[string]*time.Timer)
	defer func() {
		close(stop)
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			if t, ok := pending[ev.Name]; ok {
				t.Stop()
			}
			name := ev.Name
			pending[name] = time.AfterFunc(w.debounce, func() {
				select {
				case ready <- name:
				case <-stop:
				}
			})
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "watcher error", "error", err)
		case name := <-ready:
			delete(pending, name)
			if err := w.fn(ctx, name); err != nil {
				w.logger.WarnContext(ctx, "import from watched file failed",
					"file", name,
					"error", err,
				)
			}
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".json")
}
