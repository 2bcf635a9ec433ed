package ingest

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// ConvertResult holds the extracted article as markdown.
type ConvertResult struct {
	Title    string
	Markdown string
}

// Converter turns fetched HTML into markdown. Readability extraction
// strips navigation and boilerplate before conversion.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates a converter with GitHub-flavored markdown rules.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Converter{converter: converter}
}

// Convert extracts the readable article from HTML and renders it as
// markdown. pageURL resolves relative links during extraction.
func (c *Converter) Convert(htmlContent []byte, pageURL *url.URL) (*ConvertResult, error) {
	article, err := readability.FromReader(bytes.NewReader(htmlContent), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extracting article: %w", err)
	}

	content := article.Content
	if strings.TrimSpace(content) == "" {
		content = string(htmlContent)
	}

	markdown, err := c.converter.ConvertString(content)
	if err != nil {
		return nil, fmt.Errorf("converting to markdown: %w", err)
	}
	markdown = strings.TrimSpace(excessiveLinesRe.ReplaceAllString(markdown, "\n\n\n"))

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = extractHTMLTitle(htmlContent)
	}

	return &ConvertResult{Title: title, Markdown: markdown}, nil
}

// extractHTMLTitle pulls the <title> element from raw HTML.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil && title == ""; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}
