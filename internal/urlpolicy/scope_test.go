package urlpolicy

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func TestShouldCrawlRespectsPathPrefix(t *testing.T) {
	seed := mustParse(t, "https://example.com/docs/")
	scope := NewScope(seed, nil, nil, true, false, 2)

	if !scope.ShouldCrawl("https://example.com/docs/x", 1) {
		t.Fatalf("expected /docs/x to be in scope")
	}
	if scope.ShouldCrawl("https://example.com/blog/y", 1) {
		t.Fatalf("expected /blog/y to be out of scope")
	}
}

func TestShouldCrawlRejectsDisallowedExtension(t *testing.T) {
	seed := mustParse(t, "https://example.com/docs/")
	scope := NewScope(seed, nil, nil, false, false, 2)

	if scope.ShouldCrawl("https://example.com/docs/logo.png", 1) {
		t.Fatalf("expected .png to be rejected")
	}
}

func TestShouldCrawlEnforcesMaxDepth(t *testing.T) {
	seed := mustParse(t, "https://example.com/")
	scope := NewScope(seed, nil, nil, false, false, 1)

	if !scope.ShouldCrawl("https://example.com/a", 1) {
		t.Fatalf("expected depth 1 to be in scope")
	}
	if scope.ShouldCrawl("https://example.com/a/b", 2) {
		t.Fatalf("expected depth 2 to exceed max depth")
	}
}

func TestShouldCrawlRejectsExternalHostByDefault(t *testing.T) {
	seed := mustParse(t, "https://example.com/")
	scope := NewScope(seed, nil, nil, false, false, 2)

	if scope.ShouldCrawl("https://other.com/a", 1) {
		t.Fatalf("expected external host to be rejected")
	}
}

func TestShouldCrawlHonorsExcludePatterns(t *testing.T) {
	seed := mustParse(t, "https://example.com/")
	scope := NewScope(seed, nil, []string{`^/internal/`}, false, false, 2)

	if scope.ShouldCrawl("https://example.com/internal/secret", 1) {
		t.Fatalf("expected excluded pattern to be rejected")
	}
}
