package urlpolicy

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/temoto/robotstxt"
)

// disallowedExtensions are suffixes that never hold prose documentation
// content: images, archives, media, stylesheets, scripts, data feeds.
var disallowedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".ico": true, ".bmp": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true, ".webm": true,
	".css": true, ".js": true, ".mjs": true,
	".json": true, ".xml": true, ".rss": true, ".atom": true,
	".pdf": true, ".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// Scope holds the per-job policy evaluated by ShouldCrawl.
type Scope struct {
	AllowedHosts       map[string]bool
	ExcludePatterns    []*regexp.Regexp
	RespectPathPrefix  bool
	FollowExternal     bool
	SeedPath           string
	MaxDepth           int
	Robots             *robotstxt.RobotsData
	RobotsEnabled      bool
	RobotsUserAgent    string
}

// NewScope builds a Scope from a seed URL and configuration knobs.
// exclude patterns that fail to compile are skipped (not fatal).
func NewScope(seed *url.URL, allowedHosts []string, excludePatterns []string, respectPathPrefix, followExternal bool, maxDepth int) *Scope {
	hosts := make(map[string]bool, len(allowedHosts)+1)
	for _, h := range allowedHosts {
		hosts[strings.ToLower(h)] = true
	}
	if len(hosts) == 0 && seed != nil {
		hosts[strings.ToLower(seed.Host)] = true
	}

	var patterns []*regexp.Regexp
	for _, p := range excludePatterns {
		if re, err := regexp.Compile(p); err == nil {
			patterns = append(patterns, re)
		}
	}

	seedPath := "/"
	if seed != nil && seed.Path != "" {
		seedPath = seed.Path
	}

	return &Scope{
		AllowedHosts:      hosts,
		ExcludePatterns:   patterns,
		RespectPathPrefix: respectPathPrefix,
		FollowExternal:    followExternal,
		SeedPath:          seedPath,
		MaxDepth:          maxDepth,
	}
}

// ShouldCrawl implements the scoping predicate of spec.md §4.1: scheme,
// host allow-list, exclude patterns, disallowed extensions, path-prefix
// restriction, depth bound, and (optionally) robots.txt.
func (s *Scope) ShouldCrawl(raw string, depth int) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if !s.FollowExternal && !s.AllowedHosts[strings.ToLower(u.Host)] {
		return false
	}

	for _, re := range s.ExcludePatterns {
		if re.MatchString(u.Path) {
			return false
		}
	}

	if ext := pathExtension(u.Path); ext != "" && disallowedExtensions[ext] {
		return false
	}

	if s.RespectPathPrefix {
		if u.Path != s.SeedPath && !strings.HasPrefix(u.Path, strings.TrimSuffix(s.SeedPath, "/")+"/") {
			return false
		}
	}

	if depth > s.MaxDepth {
		return false
	}

	if s.RobotsEnabled && s.Robots != nil {
		agent := s.RobotsUserAgent
		if agent == "" {
			agent = "*"
		}
		group := s.Robots.FindGroup(agent)
		if group != nil && !group.Test(u.Path) {
			return false
		}
	}

	return true
}

func pathExtension(p string) string {
	idx := strings.LastIndexByte(p, '/')
	name := p
	if idx >= 0 {
		name = p[idx+1:]
	}
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return ""
	}
	return strings.ToLower(name[dot:])
}
