// Package ingest drafts knowledge base documents from external web
// pages. Drafts enter the corpus at low confidence with the canonical
// section skeleton so they fail closed until a curator reviews them.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/c360studio/kbgov/corpus"
	"github.com/c360studio/kbgov/document"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Ingester fetches pages and writes draft documents into a corpus.
type Ingester struct {
	corpus    *corpus.Corpus
	fetcher   *Fetcher
	converter *Converter
	now       func() time.Time
}

// Option configures an Ingester.
type Option func(*settings)

type settings struct {
	timeout     time.Duration
	maxBodySize int64
}

// WithTimeout sets the page fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithMaxBodySize sets the maximum page size in bytes.
func WithMaxBodySize(n int64) Option {
	return func(s *settings) { s.maxBodySize = n }
}

// New creates an ingester over the given corpus. Zero-valued settings
// use the fetcher defaults.
func New(c *corpus.Corpus, opts ...Option) *Ingester {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	return &Ingester{
		corpus:    c,
		fetcher:   NewFetcher(s.timeout, s.maxBodySize),
		converter: NewConverter(),
		now:       time.Now,
	}
}

// Ingest fetches a URL and writes a draft document. It returns the
// relative path of the new document. Existing documents are never
// overwritten.
func (i *Ingester) Ingest(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	body, err := i.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	result, err := i.converter.Convert(body, parsed)
	if err != nil {
		return "", err
	}

	title := result.Title
	if title == "" {
		title = parsed.Hostname()
	}

	rel := path.Join("drafts", Slug(parsed)+".md")
	if i.corpus.Known(rel) {
		return "", fmt.Errorf("draft %s already exists", rel)
	}

	content := i.renderDraft(title, rawURL, result.Markdown)
	target := filepath.Join(i.corpus.Root(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating draft directory: %w", err)
	}
	if err := atomic.WriteFile(target, bytes.NewReader(content)); err != nil {
		return "", fmt.Errorf("writing draft %s: %w", rel, err)
	}
	return rel, nil
}

// renderDraft assembles the draft with a low-confidence status block
// and the canonical section skeleton around the extracted content.
func (i *Ingester) renderDraft(title, sourceURL, markdown string) []byte {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("confidence: " + string(document.ConfidenceLow) + "\n")
	b.WriteString("last_updated: " + i.now().UTC().Format(document.DateLayout) + "\n")
	b.WriteString("source: " + sourceURL + "\n")
	b.WriteString("---\n")
	b.WriteString("# " + title + "\n\n")
	b.WriteString("## " + document.SectionScope + "\n\n")
	b.WriteString("Drafted from " + sourceURL + "; scope pending review.\n\n")
	b.WriteString("## " + document.SectionCanonicalRules + "\n\n")
	b.WriteString(markdown)
	b.WriteString("\n\n## " + document.SectionReferences + "\n\n")
	b.WriteString("- " + sourceURL + "\n")
	return []byte(b.String())
}

// Slug derives a stable file name from a URL's host and path.
func Slug(u *url.URL) string {
	raw := u.Hostname() + "-" + strings.Trim(u.Path, "/")
	slug := slugRe.ReplaceAllString(strings.ToLower(raw), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "draft"
	}
	if len(slug) > 80 {
		slug = slug[:80]
	}
	return slug
}
