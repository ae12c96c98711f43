// Package content isolates a page's main prose content and converts it to
// Markdown suitable for LLM ingestion, per spec.md §4.3.
package content

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
)

// Status mirrors the Page Result status enumeration of spec.md §3 that
// this package is responsible for deciding (ok vs skipped); duplicate and
// failed are decided by the dedup cache and the fetcher/orchestrator
// respectively.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
)

// minMarkdownBytes is the absolute-length half of the quality gate of
// spec.md §4.3 ("an absolute minimum (e.g. 200 bytes)").
const minMarkdownBytes = 200

// Result is the outcome of extracting one fetched page.
type Result struct {
	Title       string
	Markdown    string
	WordCount   int
	ContentHash string
	Status      Status
	SkipReason  string
}

var hasHeadingOrParaOrCode = regexp.MustCompile(`(?m)^(#{1,6} |[^\s#>\-].*\S|` + "```" + `)`)

// Extract parses HTML, isolates main content, converts it to Markdown, and
// evaluates the quality gate. baseURL is not used: links are not extracted
// here but by urlpolicy.ExtractLinks, which the orchestrator calls itself.
func Extract(body []byte, baseURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := selectTitle(doc)
	main := SelectMainContent(doc)
	Clean(main)
	markdown := ToMarkdown(main)

	wordCount := len(strings.Fields(markdown))
	hash := ContentHash(markdown)

	result := &Result{
		Title:       title,
		Markdown:    markdown,
		WordCount:   wordCount,
		ContentHash: hash,
	}

	if !passesQualityGate(markdown) {
		result.Status = StatusSkipped
		result.SkipReason = "content too short or lacks structured prose"
		return result, nil
	}

	result.Status = StatusOK
	return result, nil
}

// passesQualityGate implements spec.md §4.3's quality gate: Markdown
// length >= 200 bytes AND at least one of a heading, paragraph, or code
// block. See DESIGN.md for the resolution of the byte-length vs 0-100
// score ambiguity raised in spec.md §9.
func passesQualityGate(markdown string) bool {
	if len(markdown) < minMarkdownBytes {
		return false
	}
	return hasHeadingOrParaOrCode.MatchString(markdown)
}

// QualityScore maps word count onto the configured 0-100 quality_threshold
// knob, per DESIGN.md's resolution of the dual quality-threshold
// definition in spec.md §9.
func QualityScore(wordCount int) int {
	score := wordCount / 5
	if score > 100 {
		score = 100
	}
	return score
}

// ContentHash normalizes Markdown (lowercase, collapsed whitespace) and
// computes a 64-bit hash, per spec.md §4.3.
func ContentHash(markdown string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(markdown)), " ")
	sum := xxhash.Sum64String(normalized)
	return fmt.Sprintf("%016x", sum)
}

// selectTitle implements spec.md §4.3's title selection order.
func selectTitle(doc *goquery.Document) string {
	candidates := []func() string{
		func() string { return firstNonEmpty(doc, "main h1, article h1, .content h1") },
		func() string { return doc.Find(`meta[name="title"]`).AttrOr("content", "") },
		func() string { return doc.Find(`meta[property="og:title"]`).AttrOr("content", "") },
		func() string {
			t := strings.TrimSpace(doc.Find("title").First().Text())
			if idx := strings.Index(t, "|"); idx >= 0 {
				t = strings.TrimSpace(t[:idx])
			}
			return t
		},
		func() string { return firstNonEmpty(doc, "h1") },
	}

	for _, c := range candidates {
		if t := strings.TrimSpace(c()); t != "" {
			return t
		}
	}
	return "Untitled Page"
}

func firstNonEmpty(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}
