package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventChannelBuffer is the size of the watch event channel.
const eventChannelBuffer = 256

// defaultDebounce is how long to wait for more changes before emitting.
const defaultDebounce = 500 * time.Millisecond

// WatchEvent reports a changed document.
type WatchEvent struct {
	// Path is the document path relative to the corpus root.
	Path string

	// Removed is true when the document was deleted.
	Removed bool
}

// Watcher emits events when corpus documents change on disk. Events
// are debounced and suppressed when file content is unchanged.
type Watcher struct {
	corpus   *Corpus
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	pendingMu sync.Mutex
	pending   map[string]bool

	hashMu sync.Mutex
	hashes map[string]string

	events chan WatchEvent
}

// NewWatcher creates a watcher over the corpus root. A zero debounce
// uses the default.
func NewWatcher(c *Corpus, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	return &Watcher{
		corpus:   c,
		watcher:  fsw,
		logger:   logger,
		debounce: debounce,
		pending:  make(map[string]bool),
		hashes:   make(map[string]string),
		events:   make(chan WatchEvent, eventChannelBuffer),
	}, nil
}

// Events returns the channel of watch events. It is closed when the
// watcher stops.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.events
}

// Start adds recursive watches and begins emitting events until the
// context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.corpus.Root()); err != nil {
		return err
	}

	go w.run(ctx)

	w.logger.Info("corpus watcher started",
		"root", w.corpus.Root(),
		"debounce", w.debounce)
	return nil
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			base := filepath.Base(path)
			if !strings.HasPrefix(base, ".") {
				if err := w.watcher.Add(path); err != nil {
					w.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	if strings.ToLower(filepath.Ext(path)) != ".md" {
		return
	}
	rel, err := filepath.Rel(w.corpus.Root(), path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, StateDir+"/") {
		return
	}

	w.pendingMu.Lock()
	w.pending[rel] = true
	w.pendingMu.Unlock()
}

// flush emits events for pending paths whose content actually changed.
func (w *Watcher) flush(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.pendingMu.Unlock()

	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(w.corpus.Root(), filepath.FromSlash(rel)))
		if err != nil {
			if os.IsNotExist(err) {
				w.forget(rel)
				w.emit(ctx, WatchEvent{Path: rel, Removed: true})
			}
			continue
		}

		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])
		if !w.changed(rel, hash) {
			continue
		}
		w.emit(ctx, WatchEvent{Path: rel})
	}
}

func (w *Watcher) emit(ctx context.Context, event WatchEvent) {
	select {
	case w.events <- event:
	case <-ctx.Done():
	default:
		w.logger.Warn("dropping watch event, channel full", "path", event.Path)
	}
}

func (w *Watcher) changed(rel, hash string) bool {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	if w.hashes[rel] == hash {
		return false
	}
	w.hashes[rel] = hash
	return true
}

func (w *Watcher) forget(rel string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	delete(w.hashes, rel)
}
