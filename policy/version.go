package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/c360studio/kbgov/document"
)

// LegacyMarker is the literal label that must accompany prose references
// to superseded behavior.
const LegacyMarker = "[legacy]"

var (
	// untypedSentinelRe matches an assignment of the sentinel to a bare
	// identifier, with an optional var/varip qualifier but no type
	// annotation. Such statements are invalid.
	untypedSentinelRe = regexp.MustCompile(`^\s*(?:var(?:ip)?\s+)?[A-Za-z_][A-Za-z0-9_]*\s*=\s*na\s*(?://.*)?$`)

	// typedSentinelRe matches the valid forms: a type keyword precedes
	// the identifier, optionally after var/varip.
	typedSentinelRe = regexp.MustCompile(`^\s*(?:var(?:ip)?\s+)?(?:int|float|bool|string|color|line|label|box|table|array(?:<[^>]*>)?|matrix<[^>]*>|map<[^>]*>)\s+[A-Za-z_][A-Za-z0-9_]*\s*=\s*na\s*(?://.*)?$`)

	// proseVersionRe finds version tokens in prose (e.g. "v5").
	proseVersionRe = regexp.MustCompile(`\bv(\d+)\b`)
)

// CheckVersions scans a document's code samples for version declarations
// and flags mixed-version or undeclared-version content, unlabeled legacy
// references in prose, and untyped sentinel initializations. Pure
// function over the document.
func CheckVersions(doc *document.Document) Result {
	var result Result

	checkDeclaredVersions(doc, &result)
	checkSentinelInit(doc, &result)
	checkLegacyProse(doc, &result)

	result.Sort()
	return result
}

// checkDeclaredVersions enforces the one-version-per-corpus rule: every
// sample declares exactly one tag, and all samples agree.
func checkDeclaredVersions(doc *document.Document, result *Result) {
	distinct := make(map[string]bool)
	var offending []string
	firstLine := 0

	for _, sample := range doc.Samples {
		if len(sample.VersionTags) == 0 {
			result.Add(Violation{
				Category: CategoryVersion,
				Rule:     RuleUndeclaredVersion,
				Severity: SeverityError,
				Message:  fmt.Sprintf("sample %d declares no version tag", sample.Index),
				Path:     doc.Path,
				Line:     sample.Line,
			})
			continue
		}
		for _, tag := range sample.VersionTags {
			distinct[tag] = true
		}
		offending = append(offending, fmt.Sprintf("sample %d (%s)", sample.Index, strings.Join(sample.VersionTags, ", ")))
		if firstLine == 0 {
			firstLine = sample.Line
		}
	}

	if len(distinct) > 1 {
		result.Add(Violation{
			Category: CategoryVersion,
			Rule:     RuleMixedVersion,
			Severity: SeverityError,
			Message:  fmt.Sprintf("document mixes version tags %s across %s", joinSorted(distinct), strings.Join(offending, "; ")),
			Path:     doc.Path,
			Line:     firstLine,
		})
	}
}

// checkSentinelInit flags sentinel assignments without a type annotation.
// "x = na" is invalid; "float x = na" and "var float x = na" are valid.
func checkSentinelInit(doc *document.Document, result *Result) {
	for _, sample := range doc.Samples {
		for i, line := range strings.Split(sample.Text, "\n") {
			if typedSentinelRe.MatchString(line) {
				continue
			}
			if untypedSentinelRe.MatchString(line) {
				result.Add(Violation{
					Category: CategoryVersion,
					Rule:     RuleUntypedSentinel,
					Severity: SeverityError,
					Message:  fmt.Sprintf("sample %d assigns na without a type annotation: %q", sample.Index, strings.TrimSpace(line)),
					Path:     doc.Path,
					Line:     sample.Line + 1 + i,
				})
			}
		}
	}
}

// checkLegacyProse warns about prose references to older versions that
// lack the explicit legacy label. Deprecated documents are exempt, as
// their whole content describes superseded behavior.
func checkLegacyProse(doc *document.Document, result *Result) {
	if doc.IsDeprecated() {
		return
	}
	current := documentVersion(doc)
	if current == 0 {
		return
	}

	for _, prose := range doc.Prose {
		if strings.Contains(prose.Text, LegacyMarker) {
			continue
		}
		for _, m := range proseVersionRe.FindAllStringSubmatch(prose.Text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n >= current {
				continue
			}
			result.Add(Violation{
				Category: CategoryVersion,
				Rule:     RuleUnlabeledLegacy,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("prose references v%d without a %s label", n, LegacyMarker),
				Path:     doc.Path,
				Line:     prose.Line,
			})
			break
		}
	}
}

// documentVersion returns the numeric version the document's samples
// agree on, or 0 when there is no single declared version.
func documentVersion(doc *document.Document) int {
	distinct := make(map[string]bool)
	for _, sample := range doc.Samples {
		for _, tag := range sample.VersionTags {
			distinct[tag] = true
		}
	}
	if len(distinct) != 1 {
		return 0
	}
	for tag := range distinct {
		n, err := strconv.Atoi(strings.TrimPrefix(tag, "v"))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func joinSorted(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
