// Package routing provides the keyword-to-document routing index.
//
// The index is built as a deterministic fold over a static routing
// table. Ambiguity is a build error, not a runtime heuristic:
// registering the same keyword against a different canonical path fails
// instead of silently overwriting.
package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Common routing errors.
var (
	// ErrConflict is returned when a keyword is registered against a
	// different canonical path than an existing registration.
	ErrConflict = errors.New("routing conflict")

	// ErrUnknownKeyword is returned when a keyword has no registration.
	ErrUnknownKeyword = errors.New("unknown keyword")

	// ErrUnknownPath is returned when a registration references a
	// document path that does not exist in the corpus.
	ErrUnknownPath = errors.New("unknown document path")
)

// Entry maps a keyword to one canonical document path plus fallbacks.
type Entry struct {
	// Keyword is the topic string being routed.
	Keyword string `yaml:"keyword" json:"keyword"`

	// Canonical is the primary document path for the keyword.
	Canonical string `yaml:"canonical" json:"canonical"`

	// Fallbacks are additional document paths, in priority order.
	Fallbacks []string `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
}

// Index resolves keywords to document paths.
type Index struct {
	mu      sync.RWMutex
	entries map[string]Entry // keyed by lowercased keyword
}

// NewIndex creates an empty routing index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Build constructs an index from a routing table. known, when non-nil,
// reports whether a document path exists in the corpus; registrations
// referencing unknown paths fail the build.
func Build(table *Table, known func(path string) bool) (*Index, error) {
	ix := NewIndex()
	for _, entry := range table.Routes {
		if known != nil {
			if !known(entry.Canonical) {
				return nil, fmt.Errorf("%w: keyword %q routes to %q", ErrUnknownPath, entry.Keyword, entry.Canonical)
			}
			for _, fallback := range entry.Fallbacks {
				if !known(fallback) {
					return nil, fmt.Errorf("%w: keyword %q falls back to %q", ErrUnknownPath, entry.Keyword, fallback)
				}
			}
		}
		if err := ix.Register(entry.Keyword, entry.Canonical, entry.Fallbacks...); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// Register adds a keyword registration. Registering an existing keyword
// with the same canonical path is a no-op; a different canonical path
// returns ErrConflict.
func (ix *Index) Register(keyword, canonical string, fallbacks ...string) error {
	key := normalizeKeyword(keyword)
	if key == "" {
		return fmt.Errorf("keyword must not be empty")
	}
	if canonical == "" {
		return fmt.Errorf("canonical path must not be empty for keyword %q", keyword)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if existing, ok := ix.entries[key]; ok {
		if existing.Canonical != canonical {
			return fmt.Errorf("%w: keyword %q already routes to %q, refusing %q",
				ErrConflict, keyword, existing.Canonical, canonical)
		}
		return nil
	}

	ix.entries[key] = Entry{
		Keyword:   keyword,
		Canonical: canonical,
		Fallbacks: append([]string(nil), fallbacks...),
	}
	return nil
}

// Resolve returns the canonical path followed by fallbacks for a
// keyword. Lookup is case-insensitive exact match; there is no fuzzy
// matching.
func (ix *Index) Resolve(keyword string) ([]string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entry, ok := ix.entries[normalizeKeyword(keyword)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyword, keyword)
	}

	paths := make([]string, 0, 1+len(entry.Fallbacks))
	paths = append(paths, entry.Canonical)
	paths = append(paths, entry.Fallbacks...)
	return paths, nil
}

// Lookup returns the entry for a keyword, if registered.
func (ix *Index) Lookup(keyword string) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entry, ok := ix.entries[normalizeKeyword(keyword)]
	return entry, ok
}

// Keywords returns all registered keywords in sorted order.
func (ix *Index) Keywords() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	keys := make([]string, 0, len(ix.entries))
	for k := range ix.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy of the index, used to stage
// registrations during a commit without mutating shared state.
func (ix *Index) Clone() *Index {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	clone := NewIndex()
	for k, v := range ix.entries {
		v.Fallbacks = append([]string(nil), v.Fallbacks...)
		clone.entries[k] = v
	}
	return clone
}

// Snapshot returns the index contents as a table, sorted by keyword,
// suitable for deterministic persistence.
func (ix *Index) Snapshot() *Table {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	keys := make([]string, 0, len(ix.entries))
	for k := range ix.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := &Table{}
	for _, k := range keys {
		table.Routes = append(table.Routes, ix.entries[k])
	}
	return table
}

func normalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}
