package document

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// versionDirectiveRe matches a version declaration line inside a code
// sample, e.g. "//@version=6". The declared tag is normalized to "v6".
var versionDirectiveRe = regexp.MustCompile(`^\s*//@version\s*=\s*(\d+)\s*$`)

// headingRe matches an H2 section heading.
var headingRe = regexp.MustCompile(`^##\s+(.+?)\s*$`)

// Parse parses a knowledge-base markdown file into a Document.
//
// The file may start with a YAML frontmatter status block. A missing
// status block is not a parse error (the schema validator reports it);
// malformed YAML or an unterminated code fence is.
func Parse(path string, content []byte) (*Document, error) {
	doc := &Document{
		Path:    path,
		Content: string(content),
	}

	body := doc.Content
	if strings.HasPrefix(body, "---\n") || strings.HasPrefix(body, "---\r\n") {
		status, rest, err := extractStatus(body)
		if err != nil {
			return nil, fmt.Errorf("parse status block in %s: %w", path, err)
		}
		doc.HasStatus = true
		doc.Status = status
		body = rest
	}

	if err := scanBody(doc, body, headerLineCount(doc.Content, body)); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return doc, nil
}

// extractStatus parses the YAML frontmatter status block.
// Returns the parsed status, the remaining body, and any error.
func extractStatus(content string) (Status, string, error) {
	const delimiter = "---"

	start := len(delimiter)
	if len(content) > start && content[start] == '\r' {
		start++
	}
	if len(content) > start && content[start] == '\n' {
		start++
	}

	closeIdx := strings.Index(content[start:], "\n"+delimiter)
	if closeIdx == -1 {
		closeIdx = strings.Index(content[start:], "\r\n"+delimiter)
	}
	if closeIdx == -1 {
		return Status{}, content, fmt.Errorf("no closing status delimiter")
	}

	yamlContent := content[start : start+closeIdx]

	bodyStart := start + closeIdx + 1 + len(delimiter)
	for bodyStart < len(content) && (content[bodyStart] == '\n' || content[bodyStart] == '\r') {
		bodyStart++
	}

	body := ""
	if bodyStart < len(content) {
		body = content[bodyStart:]
	}

	var status Status
	if err := yaml.Unmarshal([]byte(yamlContent), &status); err != nil {
		return Status{}, content, fmt.Errorf("parse status YAML: %w", err)
	}

	return status, body, nil
}

// headerLineCount returns how many source lines precede the body,
// so section and sample positions reference the original file.
func headerLineCount(content, body string) int {
	if len(body) == 0 {
		return strings.Count(content, "\n")
	}
	header := content[:len(content)-len(body)]
	return strings.Count(header, "\n")
}

// scanBody walks the document body collecting sections, code samples,
// and prose lines. lineOffset is the number of header lines consumed
// before the body begins.
func scanBody(doc *Document, body string, lineOffset int) error {
	lines := strings.Split(body, "\n")

	var (
		current     *Section
		sectionBody strings.Builder
		inFence     bool
		fenceLine   int
		fenceLang   string
		fenceBody   strings.Builder
		fenceTags   []string
	)

	flushSection := func() {
		if current != nil {
			current.Body = strings.TrimSpace(sectionBody.String())
			doc.Sections = append(doc.Sections, *current)
			current = nil
		}
		sectionBody.Reset()
	}

	for i, line := range lines {
		lineNum := lineOffset + i + 1
		trimmed := strings.TrimSpace(line)

		if inFence {
			if strings.HasPrefix(trimmed, "```") {
				inFence = false
				doc.Samples = append(doc.Samples, CodeSample{
					Index:       len(doc.Samples) + 1,
					Line:        fenceLine,
					Language:    fenceLang,
					VersionTags: fenceTags,
					Text:        strings.TrimRight(fenceBody.String(), "\n"),
				})
				fenceTags = nil
				fenceBody.Reset()
				continue
			}
			if m := versionDirectiveRe.FindStringSubmatch(line); m != nil {
				tag := "v" + m[1]
				if !containsTag(fenceTags, tag) {
					fenceTags = append(fenceTags, tag)
				}
			}
			fenceBody.WriteString(line)
			fenceBody.WriteString("\n")
			if current != nil {
				sectionBody.WriteString(line)
				sectionBody.WriteString("\n")
			}
			continue
		}

		if strings.HasPrefix(trimmed, "```") {
			inFence = true
			fenceLine = lineNum
			fenceLang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			continue
		}

		if doc.Title == "" && strings.HasPrefix(trimmed, "# ") {
			doc.Title = strings.TrimSpace(trimmed[2:])
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			flushSection()
			current = &Section{Name: m[1], Line: lineNum}
			continue
		}

		doc.Prose = append(doc.Prose, ProseLine{Line: lineNum, Text: line})
		if current != nil {
			sectionBody.WriteString(line)
			sectionBody.WriteString("\n")
		}
	}

	if inFence {
		return fmt.Errorf("unterminated code fence opened at line %d", fenceLine)
	}
	flushSection()

	return nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
