package content

import (
	"strings"
	"testing"
)

func TestExtractBasicPageProducesHeadingAndParagraph(t *testing.T) {
	html := `<html><head><title>My Page | Docs</title></head>
	<body>
	<nav><a href="/ignored">Ignored</a></nav>
	<main>
		<h1>Hello World</h1>
		<p>This is the first paragraph with enough content to pass the quality gate that requires at least two hundred bytes of rendered markdown output, so let's add some more filler text here to be safe.</p>
	</main>
	</body></html>`

	result, err := Extract([]byte(html), "https://example.com/page")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("Status = %q, want ok (reason: %s)", result.Status, result.SkipReason)
	}
	if !strings.Contains(result.Markdown, "# Hello World") {
		t.Fatalf("Markdown missing heading: %q", result.Markdown)
	}
	if result.Title != "Hello World" {
		t.Fatalf("Title = %q, want %q", result.Title, "Hello World")
	}
}

func TestExtractShortContentIsSkipped(t *testing.T) {
	html := `<html><body><main><p>short</p></main></body></html>`

	result, err := Extract([]byte(html), "https://example.com/page")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if result.Status != StatusSkipped {
		t.Fatalf("Status = %q, want skipped", result.Status)
	}
}

func TestExtractFallsBackToTitleTag(t *testing.T) {
	html := `<html><head><title>Fallback Title | Site</title></head><body><article><p>` +
		strings.Repeat("word ", 60) + `</p></article></body></html>`

	result, err := Extract([]byte(html), "https://example.com/page")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if result.Title != "Fallback Title" {
		t.Fatalf("Title = %q, want %q", result.Title, "Fallback Title")
	}
}

func TestContentHashIsStableAcrossWhitespace(t *testing.T) {
	h1 := ContentHash("Hello   World")
	h2 := ContentHash("hello world")
	if h1 != h2 {
		t.Fatalf("ContentHash not normalized: %q != %q", h1, h2)
	}
}

func TestQualityScoreCapsAtHundred(t *testing.T) {
	if got := QualityScore(10000); got != 100 {
		t.Fatalf("QualityScore(10000) = %d, want 100", got)
	}
	if got := QualityScore(0); got != 0 {
		t.Fatalf("QualityScore(0) = %d, want 0", got)
	}
}
