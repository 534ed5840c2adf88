// Package watch re-runs work when C# sources change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"apisurface/internal/crawler"
)

// DefaultDebounce is how long the watcher waits for more changes before
// handing a batch to the handler.
const DefaultDebounce = 300 * time.Millisecond

// Handler receives a debounced batch of changed paths, sorted. It runs on
// the watcher's goroutine, so batches never overlap.
type Handler func(ctx context.Context, paths []string)

type Options struct {
	Debounce time.Duration

	// Filter selects the files that trigger a batch. Nil accepts C# sources
	// and project files.
	Filter func(path string) bool

	Logger *slog.Logger
}

// Watcher watches source roots recursively, skipping the directories the
// crawler ignores.
type Watcher struct {
	roots    []string
	handler  Handler
	debounce time.Duration
	filter   func(string) bool
	crawler  *crawler.Crawler
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// New creates a watcher. Call Run to start it.
func New(roots []string, handler Handler, opts Options) (*Watcher, error) {
	if len(roots) == 0 {
		return nil, errors.New("no roots to watch")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		roots:    roots,
		handler:  handler,
		debounce: opts.Debounce,
		filter:   opts.Filter,
		crawler:  crawler.NewCrawler(),
		logger:   opts.Logger,
		watcher:  fw,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.filter == nil {
		w.filter = w.isWatchedFile
	}
	return w, nil
}

// Run watches until ctx is cancelled. Pending changes are dropped on exit.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			return err
		}
	}
	w.logger.Info("watching for changes", "roots", w.roots, "debounce", w.debounce)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.accept(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			w.logger.Debug("changes detected", "files", len(paths))
			w.handler(ctx, paths)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// accept filters an event and starts watching newly created directories.
func (w *Watcher) accept(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.crawler.IsIgnoredDir(info.Name()) {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Warn("failed to watch directory", "path", event.Name, "error", err)
				}
			}
			return false
		}
	}
	for _, root := range w.roots {
		if isWithin(root, event.Name) && w.crawler.IsIgnoredPath(root, event.Name) {
			return false
		}
	}
	return w.filter(event.Name)
}

func (w *Watcher) isWatchedFile(path string) bool {
	return w.crawler.IsSource(path) || strings.EqualFold(filepath.Ext(path), ".csproj")
}

// addRecursive adds root and every non-ignored subdirectory.
func (w *Watcher) addRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.crawler.IsIgnoredDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
