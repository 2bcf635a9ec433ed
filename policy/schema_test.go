package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/kbgov/document"
)

func parseDoc(t *testing.T, content string) *document.Document {
	t.Helper()
	doc, err := document.Parse("docs/test.md", []byte(content))
	require.NoError(t, err)
	return doc
}

const validDoc = `---
confidence: high
last_updated: 2026-07-14
kind: behavior
---
# Sentinel Initialization

## Scope

Variable initialization with na.

## Canonical Rules

Always annotate the type.

## Examples

` + "```pine\n//@version=6\nfloat x = na\n```" + `

## Pitfalls

Untyped assignments fail to compile.

## References

- https://example.com/na
`

func TestValidate_ValidDocument(t *testing.T) {
	doc := parseDoc(t, validDoc)

	result := Validate(doc)
	assert.False(t, result.HasErrors())
	assert.Empty(t, result.Violations)
}

func TestValidate_Idempotent(t *testing.T) {
	content := "# Title\n\n## Pitfalls\n\nText.\n\n## Scope\n\nText.\n"
	doc := parseDoc(t, content)

	first := Validate(doc)
	second := Validate(doc)
	assert.Equal(t, first, second)
}

func TestValidate_MissingStatus(t *testing.T) {
	doc := parseDoc(t, "# Title\n\n## Canonical Rules\n\nRules.\n\n## References\n\n- a\n")

	result := Validate(doc)
	require.True(t, result.HasErrors())
	assert.Equal(t, RuleMissingStatus, result.Errors()[0].Rule)
}

func TestValidate_MalformedStatus(t *testing.T) {
	content := `---
confidence: certain
last_updated: someday
kind: recipe
---
# Title

## Canonical Rules

Rules.

## References

- a
`
	doc := parseDoc(t, content)

	result := Validate(doc)
	errs := result.Errors()
	require.Len(t, errs, 3)
	for _, v := range errs {
		assert.Equal(t, RuleMalformedStatus, v.Rule)
	}
}

func TestValidate_SectionOrder(t *testing.T) {
	content := `---
confidence: medium
last_updated: 2026-01-01
---
# Title

## Pitfalls

Text.

## Scope

Text.

## Canonical Rules

Text.
`
	doc := parseDoc(t, content)

	result := Validate(doc)
	require.True(t, result.HasErrors())

	var rules []string
	for _, v := range result.Errors() {
		rules = append(rules, v.Rule)
	}
	assert.Contains(t, rules, RuleSectionOrder)
}

func TestValidate_ScopeFirstReferencesLast(t *testing.T) {
	content := `---
confidence: medium
last_updated: 2026-01-01
---
# Title

## Notes

Leading non-canonical section.

## Scope

Text.

## Canonical Rules

Text.

## References

- a
`
	doc := parseDoc(t, content)

	result := Validate(doc)
	require.True(t, result.HasErrors())

	found := false
	for _, v := range result.Errors() {
		if v.Rule == RuleSectionOrder && v.Message == "Scope must be the first section" {
			found = true
		}
	}
	assert.True(t, found, "expected Scope-first violation, got %+v", result.Violations)
}

func TestValidate_MissingCanonicalRulesIsError(t *testing.T) {
	content := `---
confidence: medium
last_updated: 2026-01-01
---
# Title

## Scope

Text.

## References

- a
`
	doc := parseDoc(t, content)

	result := Validate(doc)
	require.True(t, result.HasErrors())
	assert.Equal(t, RuleMissingSection, result.Errors()[0].Rule)
}

func TestValidate_MissingReferencesIsWarning(t *testing.T) {
	content := `---
confidence: medium
last_updated: 2026-01-01
---
# Title

## Scope

Text.

## Canonical Rules

Text.
`
	doc := parseDoc(t, content)

	result := Validate(doc)
	assert.False(t, result.HasErrors())

	warnings := result.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, RuleMissingSection, warnings[0].Rule)
}

func TestValidate_NonCanonicalSectionIsWarning(t *testing.T) {
	content := `---
confidence: medium
last_updated: 2026-01-01
---
# Title

## Scope

Text.

## Canonical Rules

Text.

## Migration Notes

Text.

## References

- a
`
	doc := parseDoc(t, content)

	result := Validate(doc)
	assert.False(t, result.HasErrors())

	var rules []string
	for _, v := range result.Warnings() {
		rules = append(rules, v.Rule)
	}
	assert.Contains(t, rules, RuleNonCanonicalSection)
}

func TestValidate_BehaviorRequiresSampleAndPitfalls(t *testing.T) {
	content := `---
confidence: medium
last_updated: 2026-01-01
kind: behavior
---
# Title

## Scope

Text.

## Canonical Rules

Text.

## References

- a
`
	doc := parseDoc(t, content)

	result := Validate(doc)
	require.True(t, result.HasErrors())

	var rules []string
	for _, v := range result.Errors() {
		rules = append(rules, v.Rule)
	}
	assert.Contains(t, rules, RuleMissingSample)
	assert.Contains(t, rules, RuleMissingPitfalls)
}

func TestValidate_HighConfidenceWithoutReferencesIsWarning(t *testing.T) {
	content := `---
confidence: high
last_updated: 2026-01-01
---
# Title

## Scope

Text.

## Canonical Rules

Text.
`
	doc := parseDoc(t, content)

	result := Validate(doc)
	assert.False(t, result.HasErrors())

	var rules []string
	for _, v := range result.Warnings() {
		rules = append(rules, v.Rule)
	}
	assert.Contains(t, rules, RuleStatusInconsistency)
}
