// Package policy implements the governance rules applied to
// knowledge-base documents: schema validation and version consistency.
// Both validators are pure functions over a parsed Document.
package policy

import "sort"

// Severity grades a violation.
type Severity string

const (
	// SeverityError blocks acceptance of the proposed change.
	SeverityError Severity = "error"
	// SeverityWarning is reported but does not block acceptance.
	SeverityWarning Severity = "warning"
)

// Category identifies which policy family a violation belongs to.
type Category string

const (
	// CategorySchema covers missing or misordered sections and status faults.
	CategorySchema Category = "schema"
	// CategoryVersion covers version tag and sentinel initialization faults.
	CategoryVersion Category = "version"
	// CategoryRouting covers ambiguous keyword registrations.
	CategoryRouting Category = "routing"
	// CategoryLedger covers changelog integrity faults.
	CategoryLedger Category = "ledger"
)

// Rule names surfaced in violations. The engine never rewrites content
// to fix a violation; these are report-only findings.
const (
	RuleMissingStatus       = "missing status"
	RuleMalformedStatus     = "malformed status"
	RuleMissingSection      = "missing canonical section"
	RuleSectionOrder        = "misordered canonical sections"
	RuleNonCanonicalSection = "non-canonical section"
	RuleMissingSample       = "missing code sample"
	RuleMissingPitfalls     = "missing pitfalls"
	RuleStatusInconsistency = "status inconsistency"
	RuleMixedVersion        = "mixed-version corpus"
	RuleUndeclaredVersion   = "undeclared version"
	RuleUnlabeledLegacy     = "unlabeled legacy reference"
	RuleUntypedSentinel     = "untyped sentinel initialization"
)

// Violation is a single policy finding with its offending location.
type Violation struct {
	// Category is the policy family (schema, version, routing, ledger).
	Category Category `json:"category"`

	// Rule names the violated rule.
	Rule string `json:"rule"`

	// Severity is error or warning.
	Severity Severity `json:"severity"`

	// Message describes the violation.
	Message string `json:"message"`

	// Path is the document path the violation was found in.
	Path string `json:"path,omitempty"`

	// Line is the 1-based offending line, 0 when not line-scoped.
	Line int `json:"line,omitempty"`
}

// Result is the outcome of running a validator over a document.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Add appends a violation.
func (r *Result) Add(v Violation) {
	r.Violations = append(r.Violations, v)
}

// Merge appends all violations from another result.
func (r *Result) Merge(other Result) {
	r.Violations = append(r.Violations, other.Violations...)
}

// HasErrors returns true if any violation is error-severity.
func (r *Result) HasErrors() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity violations.
func (r *Result) Errors() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			out = append(out, v)
		}
	}
	return out
}

// Warnings returns only the warning-severity violations.
func (r *Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarning {
			out = append(out, v)
		}
	}
	return out
}

// Sort orders violations deterministically by path, line, rule, and
// message, so merged results from concurrent validators are stable.
func (r *Result) Sort() {
	sort.SliceStable(r.Violations, func(i, j int) bool {
		a, b := r.Violations[i], r.Violations[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
}
