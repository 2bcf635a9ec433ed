// Package document provides the in-memory model and parser for
// knowledge-base documents.
package document

import (
	"strings"
	"time"
)

// Confidence grades how settled the content of a document is.
type Confidence string

const (
	// ConfidenceHigh marks verified, canonical content.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium marks content believed correct but not fully verified.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceLow marks freshly ingested or stub content.
	ConfidenceLow Confidence = "low"
	// ConfidenceDeprecated is the terminal status for superseded documents.
	// Deprecated documents are retained in place, never deleted.
	ConfidenceDeprecated Confidence = "deprecated"
)

// String returns the string representation of the confidence level.
func (c Confidence) String() string {
	return string(c)
}

// IsValid returns true if the confidence level is recognized.
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceDeprecated:
		return true
	default:
		return false
	}
}

// Kind classifies what a document describes.
type Kind string

const (
	// KindConcept is for conceptual or narrative reference material.
	KindConcept Kind = "concept"
	// KindBehavior is for documents describing executable behavior.
	// Behavior documents must carry code samples and pitfalls.
	KindBehavior Kind = "behavior"
)

// IsValid returns true if the kind is recognized.
func (k Kind) IsValid() bool {
	switch k {
	case KindConcept, KindBehavior:
		return true
	default:
		return false
	}
}

// DateLayout is the date format used in status blocks and ledger queries.
const DateLayout = "2006-01-02"

// Status is the status tuple every document must declare in its
// frontmatter before it can be accepted.
type Status struct {
	// Confidence is the confidence grade (high, medium, low, deprecated).
	Confidence Confidence `yaml:"confidence" json:"confidence"`

	// LastUpdated is the last-updated date in YYYY-MM-DD form.
	LastUpdated string `yaml:"last_updated" json:"last_updated"`

	// Source is an optional provenance reference (URL or citation).
	Source string `yaml:"source,omitempty" json:"source,omitempty"`

	// Kind classifies the document (concept or behavior). Defaults to concept.
	Kind Kind `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// Date parses the LastUpdated field.
func (s Status) Date() (time.Time, error) {
	return time.Parse(DateLayout, s.LastUpdated)
}

// Section is a named block of the document body.
type Section struct {
	// Name is the section heading text (e.g., "Scope").
	Name string `json:"name"`

	// Body is the section's free-text content.
	Body string `json:"body"`

	// Line is the 1-based line number of the heading in the source file.
	Line int `json:"line"`
}

// CodeSample is a fenced code block embedded in a document.
type CodeSample struct {
	// Index is the 1-based position of the sample within the document.
	Index int `json:"index"`

	// Line is the 1-based line number of the opening fence.
	Line int `json:"line"`

	// Language is the fence info string (e.g., "pine").
	Language string `json:"language,omitempty"`

	// VersionTags lists the distinct version tags declared by the sample.
	// A valid sample declares exactly one.
	VersionTags []string `json:"version_tags,omitempty"`

	// Text is the raw sample content, version declaration included.
	Text string `json:"text"`
}

// Version returns the sample's declared version tag, or "" if the sample
// declares zero or more than one distinct tag.
func (s CodeSample) Version() string {
	if len(s.VersionTags) == 1 {
		return s.VersionTags[0]
	}
	return ""
}

// ProseLine is a body line outside any code fence, with its source position.
type ProseLine struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Document is the in-memory representation of a knowledge-base file.
type Document struct {
	// Path identifies the document within the corpus (relative, slash-separated).
	Path string `json:"path"`

	// HasStatus indicates whether a frontmatter status block was present.
	HasStatus bool `json:"has_status"`

	// Status is the parsed status tuple (zero value when HasStatus is false).
	Status Status `json:"status"`

	// Title is the first H1 heading, if any.
	Title string `json:"title,omitempty"`

	// Sections are the named body sections in source order.
	Sections []Section `json:"sections,omitempty"`

	// Samples are the embedded code samples in source order.
	Samples []CodeSample `json:"samples,omitempty"`

	// Prose holds the body lines outside code fences, for prose-level checks.
	Prose []ProseLine `json:"-"`

	// Content is the raw file content.
	Content string `json:"-"`
}

// Kind returns the document's declared kind, defaulting to concept.
func (d *Document) Kind() Kind {
	if d.Status.Kind == "" {
		return KindConcept
	}
	return d.Status.Kind
}

// Section returns the named section (case-insensitive) or nil.
func (d *Document) Section(name string) *Section {
	for i := range d.Sections {
		if strings.EqualFold(d.Sections[i].Name, name) {
			return &d.Sections[i]
		}
	}
	return nil
}

// IsDeprecated reports whether the document carries the terminal status.
func (d *Document) IsDeprecated() bool {
	return d.Status.Confidence == ConfidenceDeprecated
}

// Canonical section names in their required relative order.
const (
	SectionScope          = "Scope"
	SectionCanonicalRules = "Canonical Rules"
	SectionExamples       = "Examples"
	SectionPitfalls       = "Pitfalls"
	SectionReferences     = "References"
)

// CanonicalSections lists the five canonical section names in required order.
var CanonicalSections = []string{
	SectionScope,
	SectionCanonicalRules,
	SectionExamples,
	SectionPitfalls,
	SectionReferences,
}

// CanonicalRank returns the position of a section name in the canonical
// order, and whether the name is canonical at all. Matching is
// case-insensitive.
func CanonicalRank(name string) (int, bool) {
	for i, canonical := range CanonicalSections {
		if strings.EqualFold(name, canonical) {
			return i, true
		}
	}
	return -1, false
}
