package urlpolicy

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// navSelectors identify chrome regions whose links are excluded from
// discovery (not from dedup — a link appearing both in nav and in body
// content is still followed via the body occurrence).
var navSelectors = []string{
	"nav", "header", "footer", "aside",
	"[class*=nav]", "[id*=nav]",
	"[class*=menu]", "[id*=menu]",
	"[class*=sidebar]", "[id*=sidebar]",
	"[class*=toc]", "[id*=toc]",
	"[class*=breadcrumb]", "[id*=breadcrumb]",
}

// ExtractLinks returns absolute, de-anchored, page-deduplicated hrefs found
// in doc outside of navigation chrome, resolved against base.
func ExtractLinks(doc *goquery.Document, base *url.URL) []string {
	excluded := make(map[*html.Node]bool)
	for _, sel := range navSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				excluded[a.Nodes[0]] = true
			})
		})
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if excluded[sel.Nodes[0]] {
			return
		}
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(linkURL)
		resolved.Fragment = ""
		final := resolved.String()

		if seen[final] {
			return
		}
		seen[final] = true
		links = append(links, final)
	})

	return links
}
