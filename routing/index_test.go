package routing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_ConflictRejected(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Register("rsi", "docs/rsi.md"))

	err := ix.Register("rsi", "docs/oscillators.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	// The original registration survives.
	paths, err := ix.Resolve("rsi")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/rsi.md"}, paths)
}

func TestRegister_SameCanonicalIsIdempotent(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Register("rsi", "docs/rsi.md"))
	require.NoError(t, ix.Register("rsi", "docs/rsi.md"))
}

func TestResolve_CaseInsensitive(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Register("RSI", "docs/rsi.md", "docs/oscillators.md"))

	paths, err := ix.Resolve("rsi")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/rsi.md", "docs/oscillators.md"}, paths)

	paths, err = ix.Resolve("Rsi")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/rsi.md", "docs/oscillators.md"}, paths)
}

func TestResolve_UnknownKeyword(t *testing.T) {
	ix := NewIndex()

	_, err := ix.Resolve("macd")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKeyword)
}

func TestResolve_NoFuzzyMatching(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Register("rsi", "docs/rsi.md"))

	_, err := ix.Resolve("rsi indicator")
	assert.ErrorIs(t, err, ErrUnknownKeyword)
}

func TestBuild_ValidatesPaths(t *testing.T) {
	table := &Table{Routes: []Entry{
		{Keyword: "rsi", Canonical: "docs/rsi.md", Fallbacks: []string{"docs/missing.md"}},
	}}
	known := func(path string) bool { return path == "docs/rsi.md" }

	_, err := Build(table, known)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownPath)
}

func TestBuild_ConflictInTable(t *testing.T) {
	table := &Table{Routes: []Entry{
		{Keyword: "rsi", Canonical: "docs/rsi.md"},
		{Keyword: "RSI", Canonical: "docs/other.md"},
	}}

	_, err := Build(table, nil)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSnapshot_Deterministic(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Register("sma", "docs/sma.md"))
	require.NoError(t, ix.Register("ema", "docs/ema.md"))
	require.NoError(t, ix.Register("rsi", "docs/rsi.md"))

	table := ix.Snapshot()
	require.Len(t, table.Routes, 3)
	assert.Equal(t, "ema", table.Routes[0].Keyword)
	assert.Equal(t, "rsi", table.Routes[1].Keyword)
	assert.Equal(t, "sma", table.Routes[2].Keyword)
}

func TestClone_Independent(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Register("rsi", "docs/rsi.md"))

	clone := ix.Clone()
	require.NoError(t, clone.Register("ema", "docs/ema.md"))

	_, err := ix.Resolve("ema")
	assert.ErrorIs(t, err, ErrUnknownKeyword)
}

func TestTable_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	table := &Table{Routes: []Entry{
		{Keyword: "rsi", Canonical: "docs/rsi.md", Fallbacks: []string{"docs/oscillators.md"}},
	}}

	require.NoError(t, table.Save(path))

	loaded, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, table.Routes, loaded.Routes)
}

func TestLoadTable_MissingFileYieldsEmptyTable(t *testing.T) {
	table, err := LoadTable(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, table.Routes)
}
