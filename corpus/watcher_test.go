package corpus

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	root := t.TempDir()
	w, err := NewWatcher(New(root, nil), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w, root
}

func (w *Watcher) pendingPaths() []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	var paths []string
	for p := range w.pending {
		paths = append(paths, p)
	}
	return paths
}

func TestWatcher_ChangedTracksContentHash(t *testing.T) {
	w, _ := newTestWatcher(t)

	assert.True(t, w.changed("a.md", "h1"))
	assert.False(t, w.changed("a.md", "h1"))
	assert.True(t, w.changed("a.md", "h2"))

	w.forget("a.md")
	assert.True(t, w.changed("a.md", "h2"))
}

func TestWatcher_HandleEventFiltersNonMarkdown(t *testing.T) {
	w, root := newTestWatcher(t)

	w.handleEvent(fsnotify.Event{Name: filepath.Join(root, "notes.txt"), Op: fsnotify.Write})
	assert.Empty(t, w.pendingPaths())

	w.handleEvent(fsnotify.Event{Name: filepath.Join(root, "docs", "rsi.md"), Op: fsnotify.Write})
	assert.Equal(t, []string{"docs/rsi.md"}, w.pendingPaths())
}

func TestWatcher_HandleEventExcludesStateDirectory(t *testing.T) {
	w, root := newTestWatcher(t)

	w.handleEvent(fsnotify.Event{Name: filepath.Join(root, StateDir, "scratch.md"), Op: fsnotify.Write})
	assert.Empty(t, w.pendingPaths())
}

func TestWatcher_FlushEmitsOnlyOnContentChange(t *testing.T) {
	w, root := newTestWatcher(t)
	writeFile(t, root, "rsi.md", "# RSI\n")
	abs := filepath.Join(root, "rsi.md")
	ctx := context.Background()

	w.handleEvent(fsnotify.Event{Name: abs, Op: fsnotify.Write})
	w.flush(ctx)

	select {
	case event := <-w.events:
		assert.Equal(t, "rsi.md", event.Path)
		assert.False(t, event.Removed)
	default:
		t.Fatal("expected an event for new content")
	}

	// Same content again: suppressed.
	w.handleEvent(fsnotify.Event{Name: abs, Op: fsnotify.Write})
	w.flush(ctx)

	select {
	case event := <-w.events:
		t.Fatalf("unexpected event for unchanged content: %+v", event)
	default:
	}

	// Changed content: emitted.
	writeFile(t, root, "rsi.md", "# RSI updated\n")
	w.handleEvent(fsnotify.Event{Name: abs, Op: fsnotify.Write})
	w.flush(ctx)

	select {
	case event := <-w.events:
		assert.Equal(t, "rsi.md", event.Path)
	default:
		t.Fatal("expected an event for changed content")
	}
}

func TestWatcher_FlushEmitsRemovalForMissingFile(t *testing.T) {
	w, root := newTestWatcher(t)

	w.handleEvent(fsnotify.Event{Name: filepath.Join(root, "ghost.md"), Op: fsnotify.Remove})
	w.flush(context.Background())

	select {
	case event := <-w.events:
		assert.Equal(t, "ghost.md", event.Path)
		assert.True(t, event.Removed)
	default:
		t.Fatal("expected a removal event")
	}
}
