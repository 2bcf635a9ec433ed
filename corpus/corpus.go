// Package corpus manages the on-disk knowledge base: document
// discovery, loading, and the state directory that holds the routing
// table and changelog ledger.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/kbgov/document"
)

// State directory layout under the corpus root.
const (
	StateDir     = ".kbgov"
	RoutingFile  = "routing.yaml"
	ChangelogDir = "changelog"
)

// DefaultPatterns matches every markdown file in the corpus.
var DefaultPatterns = []string{"**/*.md"}

// Corpus is a knowledge base rooted at a directory.
type Corpus struct {
	root     string
	patterns []string
}

// New creates a corpus handle for root. When patterns is empty,
// DefaultPatterns is used.
func New(root string, patterns []string) *Corpus {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Corpus{root: root, patterns: patterns}
}

// Root returns the corpus root directory.
func (c *Corpus) Root() string {
	return c.root
}

// StatePath returns the state directory path.
func (c *Corpus) StatePath() string {
	return filepath.Join(c.root, StateDir)
}

// RoutingTablePath returns the routing table file path.
func (c *Corpus) RoutingTablePath() string {
	return filepath.Join(c.StatePath(), RoutingFile)
}

// ChangelogPath returns the changelog ledger directory path.
func (c *Corpus) ChangelogPath() string {
	return filepath.Join(c.StatePath(), ChangelogDir)
}

// EnsureDirectories creates the state directory layout.
func (c *Corpus) EnsureDirectories() error {
	for _, dir := range []string{c.StatePath(), c.ChangelogPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// Scan returns the relative paths of all documents matching the corpus
// patterns, sorted and slash-separated. Files under the state directory
// are excluded.
func (c *Corpus) Scan() ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	for _, pattern := range c.patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(c.root, pattern))
		if err != nil {
			return nil, fmt.Errorf("resolving pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(c.root, match)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if strings.HasPrefix(rel, StateDir+"/") {
				continue
			}
			if !seen[rel] {
				seen[rel] = true
				paths = append(paths, rel)
			}
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// Known reports whether a relative document path exists in the corpus.
func (c *Corpus) Known(rel string) bool {
	info, err := os.Stat(filepath.Join(c.root, filepath.FromSlash(rel)))
	return err == nil && !info.IsDir()
}

// Load reads and parses one document by relative path.
func (c *Corpus) Load(rel string) (*document.Document, error) {
	data, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", rel, err)
	}
	return document.Parse(rel, data)
}

// LoadAll scans the corpus and parses every document. Parse failures
// abort the load; callers that need per-document verdicts should use
// Scan and Load individually.
func (c *Corpus) LoadAll() ([]*document.Document, error) {
	paths, err := c.Scan()
	if err != nil {
		return nil, err
	}

	docs := make([]*document.Document, 0, len(paths))
	for _, rel := range paths {
		doc, err := c.Load(rel)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
