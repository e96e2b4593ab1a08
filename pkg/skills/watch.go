package skills

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/satchel-sh/satchel/pkg/logger"
)

// DefaultWatchDebounce collapses bursts of filesystem events (an editor
// save typically emits several) into a single cache invalidation.
const DefaultWatchDebounce = 500 * time.Millisecond

// Watcher invalidates the loader's caches when the skill directory changes
// on disk, giving watch-mode deployments immediate pickup instead of
// waiting for the cache window to expire.
type Watcher struct {
	loader   *Loader
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher builds a Watcher over the loader's base path, registering
// every existing subdirectory. A missing base path is not an error; the
// watcher simply has nothing to report until it is recreated.
func NewWatcher(loader *Loader, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating filesystem watcher")
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	w := &Watcher{loader: loader, watcher: fsw, debounce: debounce}
	if err := w.addRecursive(loader.BasePath()); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

// Start runs the event loop until ctx is cancelled or the watcher is
// closed. Newly created directories are added to the watch set so skills
// dropped in after startup are still noticed.
func (w *Watcher) Start(ctx context.Context) error {
	log := logger.G(ctx)
	log.WithField("base_path", w.loader.BasePath()).Info("watching skill directory for changes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						log.WithError(err).WithField("path", event.Name).Warn("failed to watch new directory")
					}
				}
			}
			log.WithField("path", event.Name).WithField("op", event.Op.String()).Debug("skill directory changed")
			w.scheduleInvalidate(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("filesystem watcher error")
		}
	}
}

// scheduleInvalidate resets the debounce timer so a burst of events
// produces one invalidation after the quiet period.
func (w *Watcher) scheduleInvalidate(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.loader.InvalidateCache()
		logger.G(ctx).Debug("skill caches invalidated")
	})
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
