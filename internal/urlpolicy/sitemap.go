package urlpolicy

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
)

// maxSitemapURLs bounds how many URLs a single sitemap discovery pass
// returns, independent of the job's max_pages (the frontier still applies
// its own admission bound on top of this).
const maxSitemapURLs = 500

// maxSitemapIndexDepth bounds recursion through nested sitemap indexes.
const maxSitemapIndexDepth = 2

type sitemapURL struct {
	Loc string `xml:"loc"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name          `xml:"sitemapindex"`
	Sitemaps []sitemapIndexRef `xml:"sitemap"`
}

type sitemapIndexRef struct {
	Loc string `xml:"loc"`
}

// FetchFunc retrieves the body of rawURL, or an error if it could not be
// fetched. DiscoverSitemap treats a non-nil error as "no sitemap here"
// rather than propagating it.
type FetchFunc func(ctx context.Context, rawURL string) ([]byte, error)

// DiscoverSitemap fetches seed's host-root /sitemap.xml via fetchFn and
// returns the URLs it lists, following up to maxSitemapIndexDepth levels
// of sitemap-index nesting. It returns nil if the sitemap is absent or
// unparseable, since sitemap seeding is a best-effort supplement to link
// discovery, not a requirement.
func DiscoverSitemap(ctx context.Context, fetchFn FetchFunc, seed *url.URL) []string {
	if fetchFn == nil || seed == nil {
		return nil
	}
	loc := fmt.Sprintf("%s://%s/sitemap.xml", seed.Scheme, seed.Host)
	urls, err := fetchSitemap(ctx, fetchFn, loc, 0)
	if err != nil {
		return nil
	}
	if len(urls) > maxSitemapURLs {
		urls = urls[:maxSitemapURLs]
	}
	return urls
}

func fetchSitemap(ctx context.Context, fetchFn FetchFunc, loc string, depth int) ([]string, error) {
	if depth > maxSitemapIndexDepth {
		return nil, nil
	}

	body, err := fetchFn(ctx, loc)
	if err != nil {
		return nil, err
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		var all []string
		for _, ref := range index.Sitemaps {
			if len(all) >= maxSitemapURLs {
				break
			}
			urls, err := fetchSitemap(ctx, fetchFn, ref.Loc, depth+1)
			if err != nil {
				continue
			}
			all = append(all, urls...)
		}
		return all, nil
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if u.Loc != "" {
			urls = append(urls, u.Loc)
		}
	}
	return urls, nil
}
