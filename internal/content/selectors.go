package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// mainSelectorLadder is tried in order; the first match wins. Grounded on
// spec.md §4.3's ranked selector list.
var mainSelectorLadder = []string{
	"main[role=main]",
	"article[role=article]",
	"[role=main]",
	"main",
	"article",
	".documentation-content",
	".docs-content",
	".markdown-body",
	".article-content",
	".content",
}

// removeSelectors lists elements stripped from the isolated main content
// before conversion, per spec.md §4.3's cleaning pass.
var removeSelectors = []string{
	"script", "style", "noscript", "iframe", "form", "link", "meta",
	"nav", "header", "footer", "aside",
	"[role=navigation]", "[role=presentation]", "[aria-hidden=true]",
	".sidebar", ".toc", ".table-of-contents",
	".comment-section", ".comments",
	".share", ".social", ".social-share",
	".advertisement", ".ads", "#ads", ".ad-banner",
	".copy-button", ".export-button", ".powered-by",
}

// SelectMainContent finds the main-content node using the selector ladder,
// falling back to a scored heuristic over div/section candidates, and
// finally the whole body.
func SelectMainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range mainSelectorLadder {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}

	best, bestScore := (*goquery.Selection)(nil), -1.0
	doc.Find("div, section").Each(func(_ int, s *goquery.Selection) {
		if isLikelyChrome(s) {
			return
		}
		score := scoreCandidate(s)
		if score > bestScore {
			bestScore = score
			best = s
		}
	})
	if best != nil && bestScore > 0 {
		return best
	}

	return doc.Find("body").First()
}

// isLikelyChrome reports whether a candidate node's class/id marks it as
// navigation chrome rather than prose content.
func isLikelyChrome(s *goquery.Selection) bool {
	class, _ := s.Attr("class")
	id, _ := s.Attr("id")
	combined := strings.ToLower(class + " " + id)
	for _, marker := range []string{"nav", "menu", "sidebar", "toc", "breadcrumb", "footer", "header"} {
		if strings.Contains(combined, marker) {
			return true
		}
	}
	return false
}

// scoreCandidate implements spec.md §4.3's scoring formula:
// 10·p + 15·h* + 20·(pre|code) + 5·(ul|ol) + text_length/100.
func scoreCandidate(s *goquery.Selection) float64 {
	p := s.Find("p").Length()
	headings := s.Find("h1,h2,h3,h4,h5,h6").Length()
	code := s.Find("pre,code").Length()
	lists := s.Find("ul,ol").Length()
	textLen := len(strings.TrimSpace(s.Text()))

	return 10*float64(p) + 15*float64(headings) + 20*float64(code) + 5*float64(lists) + float64(textLen)/100
}

// Clean removes script/style/chrome elements and decorative attributes
// from the isolated main-content subtree, in place.
func Clean(main *goquery.Selection) {
	for _, sel := range removeSelectors {
		main.Find(sel).Remove()
	}

	main.Find("*").Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("style")
		for _, attr := range attrNames(s) {
			if strings.HasPrefix(attr, "data-") {
				s.RemoveAttr(attr)
			}
		}
	})

	// Remove now-empty or whitespace-only leaf elements left behind by the
	// removals above.
	removeEmptyLeaves(main)
}

func attrNames(s *goquery.Selection) []string {
	if s.Length() == 0 {
		return nil
	}
	node := s.Get(0)
	names := make([]string, 0, len(node.Attr))
	for _, a := range node.Attr {
		names = append(names, a.Key)
	}
	return names
}

func removeEmptyLeaves(main *goquery.Selection) {
	// Iterate a few passes since removing a leaf can empty its parent.
	for pass := 0; pass < 3; pass++ {
		changed := false
		main.Find("p,div,span,li,section").Each(func(_ int, s *goquery.Selection) {
			if s.Children().Length() == 0 && strings.TrimSpace(s.Text()) == "" {
				s.Remove()
				changed = true
			}
		})
		if !changed {
			break
		}
	}
}
