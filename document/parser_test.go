package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `---
confidence: high
last_updated: 2026-07-14
source: https://example.com/reference/na
kind: behavior
---
# Typed Sentinel Initialization

## Scope

Covers initialization of variables with the not-available sentinel.

## Canonical Rules

Always annotate the type when assigning the sentinel.

## Examples

` + "```pine\n//@version=6\nfloat x = na\n```" + `

## Pitfalls

Omitting the type annotation produces an untyped series.

## References

- https://example.com/reference/na
`

func TestParse_FullDocument(t *testing.T) {
	doc, err := Parse("docs/na.md", []byte(sampleDoc))
	require.NoError(t, err)

	assert.True(t, doc.HasStatus)
	assert.Equal(t, ConfidenceHigh, doc.Status.Confidence)
	assert.Equal(t, "2026-07-14", doc.Status.LastUpdated)
	assert.Equal(t, "https://example.com/reference/na", doc.Status.Source)
	assert.Equal(t, KindBehavior, doc.Kind())
	assert.Equal(t, "Typed Sentinel Initialization", doc.Title)

	require.Len(t, doc.Sections, 5)
	names := make([]string, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		names = append(names, s.Name)
	}
	assert.Equal(t, CanonicalSections, names)

	require.Len(t, doc.Samples, 1)
	sample := doc.Samples[0]
	assert.Equal(t, 1, sample.Index)
	assert.Equal(t, "pine", sample.Language)
	assert.Equal(t, []string{"v6"}, sample.VersionTags)
	assert.Equal(t, "v6", sample.Version())
	assert.Contains(t, sample.Text, "float x = na")
}

func TestParse_NoStatusBlock(t *testing.T) {
	content := "# Title\n\n## Scope\n\nSome text.\n"

	doc, err := Parse("docs/stub.md", []byte(content))
	require.NoError(t, err)

	assert.False(t, doc.HasStatus)
	assert.Equal(t, KindConcept, doc.Kind())
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Scope", doc.Sections[0].Name)
}

func TestParse_MalformedStatusYAML(t *testing.T) {
	content := "---\nconfidence: [unclosed\n---\n# Title\n"

	_, err := Parse("docs/bad.md", []byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status")
}

func TestParse_UnterminatedFence(t *testing.T) {
	content := "# Title\n\n```pine\n//@version=6\nx = close\n"

	_, err := Parse("docs/bad.md", []byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated code fence")
}

func TestParse_SampleWithoutVersion(t *testing.T) {
	content := "# Title\n\n```pine\nx = close\n```\n"

	doc, err := Parse("docs/t.md", []byte(content))
	require.NoError(t, err)

	require.Len(t, doc.Samples, 1)
	assert.Empty(t, doc.Samples[0].VersionTags)
	assert.Equal(t, "", doc.Samples[0].Version())
}

func TestParse_SampleWithMixedVersions(t *testing.T) {
	content := "# Title\n\n```pine\n//@version=5\n//@version=6\nx = close\n```\n"

	doc, err := Parse("docs/t.md", []byte(content))
	require.NoError(t, err)

	require.Len(t, doc.Samples, 1)
	assert.Equal(t, []string{"v5", "v6"}, doc.Samples[0].VersionTags)
	assert.Equal(t, "", doc.Samples[0].Version())
}

func TestParse_SampleLineNumbers(t *testing.T) {
	doc, err := Parse("docs/na.md", []byte(sampleDoc))
	require.NoError(t, err)

	require.Len(t, doc.Samples, 1)
	// Opening fence sits below the status block and three sections.
	assert.Greater(t, doc.Samples[0].Line, 10)
}

func TestParse_ProseExcludesFences(t *testing.T) {
	doc, err := Parse("docs/na.md", []byte(sampleDoc))
	require.NoError(t, err)

	for _, line := range doc.Prose {
		assert.NotContains(t, line.Text, "//@version")
	}
}

func TestParse_WindowsLineEndings(t *testing.T) {
	content := "---\r\nconfidence: low\r\nlast_updated: 2026-01-02\r\n---\r\n# Title\r\n"

	doc, err := Parse("docs/t.md", []byte(content))
	require.NoError(t, err)

	assert.True(t, doc.HasStatus)
	assert.Equal(t, ConfidenceLow, doc.Status.Confidence)
}

func TestCanonicalRank(t *testing.T) {
	tests := []struct {
		name      string
		rank      int
		canonical bool
	}{
		{"Scope", 0, true},
		{"scope", 0, true},
		{"Canonical Rules", 1, true},
		{"Examples", 2, true},
		{"Pitfalls", 3, true},
		{"References", 4, true},
		{"Notes", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rank, ok := CanonicalRank(tt.name)
			assert.Equal(t, tt.canonical, ok)
			assert.Equal(t, tt.rank, rank)
		})
	}
}

func TestStatus_Date(t *testing.T) {
	s := Status{LastUpdated: "2026-07-14"}
	d, err := s.Date()
	require.NoError(t, err)
	assert.Equal(t, 2026, d.Year())

	s = Status{LastUpdated: "not-a-date"}
	_, err = s.Date()
	assert.Error(t, err)
}

func TestConfidence_IsValid(t *testing.T) {
	assert.True(t, ConfidenceHigh.IsValid())
	assert.True(t, ConfidenceDeprecated.IsValid())
	assert.False(t, Confidence("certain").IsValid())
}
