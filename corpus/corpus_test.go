package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScan_FindsMarkdownRecursively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "rsi.md", "# RSI\n")
	writeFile(t, root, "indicators/sma.md", "# SMA\n")
	writeFile(t, root, "notes.txt", "not a document")

	c := New(root, nil)
	paths, err := c.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"indicators/sma.md", "rsi.md"}, paths)
}

func TestScan_ExcludesStateDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "rsi.md", "# RSI\n")
	writeFile(t, root, StateDir+"/scratch.md", "internal state")

	c := New(root, nil)
	paths, err := c.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"rsi.md"}, paths)
}

func TestKnown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "rsi.md", "# RSI\n")

	c := New(root, nil)
	assert.True(t, c.Known("rsi.md"))
	assert.False(t, c.Known("ghost.md"))
	assert.False(t, c.Known("."))
}

func TestLoad_ParsesDocument(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "rsi.md", "---\nconfidence: high\nlast_updated: 2026-08-01\n---\n# RSI\n\n## Scope\n\nText.\n")

	c := New(root, nil)
	doc, err := c.Load("rsi.md")
	require.NoError(t, err)
	assert.Equal(t, "rsi.md", doc.Path)
	assert.Equal(t, "RSI", doc.Title)
	assert.True(t, doc.HasStatus)
}

func TestLoad_MissingFile(t *testing.T) {
	c := New(t.TempDir(), nil)

	_, err := c.Load("absent.md")
	assert.Error(t, err)
}

func TestLoadAll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "# A\n")
	writeFile(t, root, "b.md", "# B\n")

	c := New(root, nil)
	docs, err := c.LoadAll()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.md", docs[0].Path)
	assert.Equal(t, "b.md", docs[1].Path)
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	c := New(root, nil)

	require.NoError(t, c.EnsureDirectories())
	info, err := os.Stat(c.ChangelogPath())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
