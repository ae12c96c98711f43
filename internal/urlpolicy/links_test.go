package urlpolicy

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustParseDoc(t *testing.T, htmlSrc string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestExtractLinksExcludesNavRegions(t *testing.T) {
	doc := mustParseDoc(t, `<html><body>
		<nav><a href="/nav-link">nav</a></nav>
		<header><a href="/header-link">header</a></header>
		<main>
			<a href="/body-link">body</a>
			<div class="sidebar"><a href="/sidebar-link">sidebar</a></div>
		</main>
		<footer><a href="/footer-link">footer</a></footer>
	</body></html>`)
	base := mustParse(t, "https://example.com/docs/")

	links := ExtractLinks(doc, base)

	want := "https://example.com/body-link"
	if len(links) != 1 || links[0] != want {
		t.Fatalf("expected only %q, got %v", want, links)
	}
}

func TestExtractLinksKeepsDuplicateAnchorTextAcrossRegions(t *testing.T) {
	doc := mustParseDoc(t, `<html><body>
		<nav><a href="/docs/guide">guide</a></nav>
		<main><a href="/docs/guide">guide</a></main>
	</body></html>`)
	base := mustParse(t, "https://example.com/")

	links := ExtractLinks(doc, base)

	if len(links) != 1 || links[0] != "https://example.com/docs/guide" {
		t.Fatalf("expected the body occurrence of the shared href to survive, got %v", links)
	}
}

func TestExtractLinksResolvesAndDedupesAndStripsFragments(t *testing.T) {
	doc := mustParseDoc(t, `<html><body>
		<a href="page#section">a</a>
		<a href="page">b</a>
		<a href="#top">c</a>
		<a href="mailto:a@example.com">d</a>
		<a href="javascript:void(0)">e</a>
	</body></html>`)
	base := mustParse(t, "https://example.com/docs/")

	links := ExtractLinks(doc, base)

	if len(links) != 1 || links[0] != "https://example.com/docs/page" {
		t.Fatalf("expected a single deduped, fragment-stripped link, got %v", links)
	}
}
