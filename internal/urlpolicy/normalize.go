// Package urlpolicy canonicalizes URLs and decides whether a URL is
// in-scope for a crawl job.
package urlpolicy

import (
	"sort"
	"strings"

	"net/url"

	"github.com/cespare/xxhash/v2"
)

// trackingQueryKeys are stripped from every URL regardless of job config.
var trackingQueryKeys = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"mc_cid":       true,
	"mc_eid":       true,
	"msclkid":      true,
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize canonicalizes a raw URL deterministically: lowercase
// scheme/host, drop default ports, drop the fragment unless includeAnchors
// is set, strip well-known tracking query keys, sort remaining query keys,
// and collapse dot-segments. Two URLs with equal canonical forms are equal
// for dedup purposes.
func Normalize(raw string, includeAnchors bool) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if port := u.Port(); port != "" {
		if defaultPorts[u.Scheme] == port {
			u.Host = strings.TrimSuffix(u.Host, ":"+port)
		}
	}

	if !includeAnchors {
		u.Fragment = ""
	}

	u.Path = collapseDotSegments(u.Path)

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if trackingQueryKeys[strings.ToLower(key)] {
				q.Del(key)
			}
		}
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sb strings.Builder
		for i, k := range keys {
			for j, v := range q[k] {
				if sb.Len() > 0 {
					sb.WriteByte('&')
				}
				sb.WriteString(url.QueryEscape(k))
				sb.WriteByte('=')
				sb.WriteString(url.QueryEscape(v))
				_ = i
				_ = j
			}
		}
		u.RawQuery = sb.String()
	}

	return u.String(), nil
}

// collapseDotSegments removes "." and ".." segments per RFC 3986 §5.2.4,
// preserving a trailing slash when present (significant for prefix scoping).
func collapseDotSegments(path string) string {
	if path == "" {
		return path
	}

	trailingSlash := strings.HasSuffix(path, "/")
	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))

	for _, seg := range segments {
		switch seg {
		case ".":
			// drop
		case "..":
			if len(out) > 0 && out[len(out)-1] != "" {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}

	result := strings.Join(out, "/")
	if trailingSlash && !strings.HasSuffix(result, "/") {
		result += "/"
	}
	if result == "" {
		result = "/"
	}
	return result
}

// Hash returns a stable 64-bit dedup key for a canonical URL, formatted as
// a fixed-width hex string for storage.
func Hash(canonical string) string {
	sum := xxhash.Sum64String(canonical)
	return strings.ToLower(formatHex(sum))
}

func formatHex(v uint64) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		b[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(b)
}
