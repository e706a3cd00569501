package dataset

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates the cached snapshot when the source file changes
// on disk. It watches the containing directory (editors and POS
// exports commonly replace the file rather than writing in place) and
// debounces by modification time.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu      sync.Mutex
	lastMod time.Time

	// onReload, when set, is called after each snapshot swap.
	onReload func(*Snapshot)
}

// NewWatcher creates a watcher for the store's source file.
func NewWatcher(store *Store, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(filepath.Dir(store.sourcePath)); err != nil {
		fw.Close()
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		store:   store,
		watcher: fw,
		logger:  logger.With(slog.String("component", "dataset.watcher")),
	}, nil
}

// OnReload registers a callback invoked after every snapshot swap,
// before Watch resumes waiting for events.
func (w *Watcher) OnReload(fn func(*Snapshot)) {
	w.onReload = fn
}

// Watch blocks processing filesystem events until the context is
// cancelled or the underlying watcher fails.
func (w *Watcher) Watch(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.handleChange(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.ErrorContext(ctx, "watch error", slog.String("error", err.Error()))
			return err
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Name != w.store.sourcePath {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

func (w *Watcher) handleChange(ctx context.Context) {
	info, err := os.Stat(w.store.sourcePath)
	if err != nil {
		// Replaced files briefly disappear mid-swap.
		return
	}

	w.mu.Lock()
	if !info.ModTime().After(w.lastMod) {
		w.mu.Unlock()
		return
	}
	w.lastMod = info.ModTime()
	w.mu.Unlock()

	swapped, err := w.store.Reload(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "reload after source change failed",
			slog.String("error", err.Error()))
		return
	}

	if swapped && w.onReload != nil {
		if snapshot, err := w.store.Snapshot(ctx); err == nil {
			w.onReload(snapshot)
		}
	}
}
