package policy

import (
	"fmt"

	"github.com/c360studio/kbgov/document"
)

// Validate checks a document against the canonical section template and
// status requirements. It is a pure function: running it twice on the
// same document yields the same result.
func Validate(doc *document.Document) Result {
	var result Result

	validateStatus(doc, &result)
	validateSections(doc, &result)
	validateBehavior(doc, &result)

	result.Sort()
	return result
}

// validateStatus checks that the status tuple is present and well-formed.
func validateStatus(doc *document.Document, result *Result) {
	if !doc.HasStatus {
		result.Add(Violation{
			Category: CategorySchema,
			Rule:     RuleMissingStatus,
			Severity: SeverityError,
			Message:  "document has no status block (confidence, last_updated required)",
			Path:     doc.Path,
		})
		return
	}

	if !doc.Status.Confidence.IsValid() {
		result.Add(Violation{
			Category: CategorySchema,
			Rule:     RuleMalformedStatus,
			Severity: SeverityError,
			Message:  fmt.Sprintf("unknown confidence level %q", doc.Status.Confidence),
			Path:     doc.Path,
		})
	}

	if _, err := doc.Status.Date(); err != nil {
		result.Add(Violation{
			Category: CategorySchema,
			Rule:     RuleMalformedStatus,
			Severity: SeverityError,
			Message:  fmt.Sprintf("last_updated %q is not a valid %s date", doc.Status.LastUpdated, document.DateLayout),
			Path:     doc.Path,
		})
	}

	if doc.Status.Kind != "" && !doc.Status.Kind.IsValid() {
		result.Add(Violation{
			Category: CategorySchema,
			Rule:     RuleMalformedStatus,
			Severity: SeverityError,
			Message:  fmt.Sprintf("unknown document kind %q", doc.Status.Kind),
			Path:     doc.Path,
		})
	}

	// Open question resolved as a warning: high confidence without a
	// References section is inconsistent but not blocking.
	if doc.Status.Confidence == document.ConfidenceHigh && doc.Section(document.SectionReferences) == nil {
		result.Add(Violation{
			Category: CategorySchema,
			Rule:     RuleStatusInconsistency,
			Severity: SeverityWarning,
			Message:  "confidence is high but document has no References section",
			Path:     doc.Path,
		})
	}
}

// validateSections checks canonical section presence and relative order.
func validateSections(doc *document.Document, result *Result) {
	lastRank := -1
	lastName := ""
	for _, section := range doc.Sections {
		rank, canonical := document.CanonicalRank(section.Name)
		if !canonical {
			result.Add(Violation{
				Category: CategorySchema,
				Rule:     RuleNonCanonicalSection,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("section %q is not a canonical section", section.Name),
				Path:     doc.Path,
				Line:     section.Line,
			})
			continue
		}
		if rank < lastRank {
			result.Add(Violation{
				Category: CategorySchema,
				Rule:     RuleSectionOrder,
				Severity: SeverityError,
				Message:  fmt.Sprintf("section %q must appear before %q", section.Name, lastName),
				Path:     doc.Path,
				Line:     section.Line,
			})
		}
		if rank > lastRank {
			lastRank = rank
			lastName = section.Name
		}
	}

	scope := doc.Section(document.SectionScope)
	refs := doc.Section(document.SectionReferences)
	if scope != nil && refs != nil && len(doc.Sections) > 0 {
		if doc.Sections[0].Name != scope.Name {
			result.Add(Violation{
				Category: CategorySchema,
				Rule:     RuleSectionOrder,
				Severity: SeverityError,
				Message:  "Scope must be the first section",
				Path:     doc.Path,
				Line:     scope.Line,
			})
		}
		if doc.Sections[len(doc.Sections)-1].Name != refs.Name {
			result.Add(Violation{
				Category: CategorySchema,
				Rule:     RuleSectionOrder,
				Severity: SeverityError,
				Message:  "References must be the last section",
				Path:     doc.Path,
				Line:     refs.Line,
			})
		}
	}

	if doc.Section(document.SectionCanonicalRules) == nil {
		result.Add(Violation{
			Category: CategorySchema,
			Rule:     RuleMissingSection,
			Severity: SeverityError,
			Message:  "missing Canonical Rules section",
			Path:     doc.Path,
		})
	}
	if refs == nil {
		result.Add(Violation{
			Category: CategorySchema,
			Rule:     RuleMissingSection,
			Severity: SeverityWarning,
			Message:  "missing References section",
			Path:     doc.Path,
		})
	}
}

// validateBehavior enforces the extra requirements on documents that
// claim to document executable behavior.
func validateBehavior(doc *document.Document, result *Result) {
	if doc.Kind() != document.KindBehavior {
		return
	}

	if len(doc.Samples) == 0 {
		result.Add(Violation{
			Category: CategorySchema,
			Rule:     RuleMissingSample,
			Severity: SeverityError,
			Message:  "behavior document has no code sample",
			Path:     doc.Path,
		})
	}

	pitfalls := doc.Section(document.SectionPitfalls)
	if pitfalls == nil || pitfalls.Body == "" {
		result.Add(Violation{
			Category: CategorySchema,
			Rule:     RuleMissingPitfalls,
			Severity: SeverityError,
			Message:  "behavior document has no Pitfalls entry",
			Path:     doc.Path,
		})
	}
}
