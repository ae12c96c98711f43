package orchestrator

import (
	"fmt"
	"time"

	"docuforge/internal/config"
)

// Config is the per-job Configuration enumeration of spec.md §3.
type Config struct {
	MaxPages              int      `json:"max_pages"`
	MaxDepth              int      `json:"max_depth"`
	QualityThreshold      int      `json:"quality_threshold"`
	TimeoutMsPerRequest   int      `json:"timeout_ms_per_request"`
	RateLimitMs           int      `json:"rate_limit_ms"`
	MaxConcurrentRequests int      `json:"max_concurrent_requests"`
	IncludeAnchors        bool     `json:"include_anchors"`
	AllowedHosts          []string `json:"allowed_hosts"`
	ExcludePatterns       []string `json:"exclude_patterns"`
	RespectPathPrefix     bool     `json:"respect_path_prefix"`
	FollowExternalLinks   bool     `json:"follow_external_links"`

	// UseSitemap opts a job into seeding its frontier from /sitemap.xml in
	// addition to the seed URL (SPEC_FULL.md §6's supplemented sitemap
	// discovery). Default false: a job that doesn't ask for it behaves
	// exactly as the seed-only baseline.
	UseSitemap bool `json:"use_sitemap"`

	// JobDeadline bounds the whole job, not just one request; it is an
	// ambient knob (not in the enumerated per-request config) grounded in
	// the teacher's SyncJobWaitTimeoutMs and spec.md §4.6's "wall-clock
	// deadline (default 5 min)".
	JobDeadline time.Duration `json:"-"`

	// RespectRobots and RobotsUserAgent govern the robots.txt-aware
	// scoping supplement (SPEC_FULL.md §6). Both are ambient, sourced
	// from the deployment's config.RobotsConfig rather than the request
	// body: robots compliance is an operator policy, not a per-caller
	// choice.
	RespectRobots   bool   `json:"-"`
	RobotsUserAgent string `json:"-"`
}

// DefaultConfig returns spec.md §3's defaults.
func DefaultConfig() Config {
	return Config{
		MaxPages:              50,
		MaxDepth:              2,
		QualityThreshold:      20,
		TimeoutMsPerRequest:   30000,
		RateLimitMs:           1000,
		MaxConcurrentRequests: 5,
		IncludeAnchors:        false,
		RespectPathPrefix:     true,
		FollowExternalLinks:   false,
		JobDeadline:           5 * time.Minute,
		RespectRobots:         true,
		RobotsUserAgent:       "docuforge-crawler",
	}
}

// WithBase fills zero-valued fields of cfg with d's values. Manager uses
// this with the server's configured crawl defaults (config.Config.Crawl)
// in place of the package's hardcoded DefaultConfig, so a deployment's
// config file actually governs what an under-specified request gets.
func (c Config) WithBase(d Config) Config {
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = d.QualityThreshold
	}
	if c.TimeoutMsPerRequest <= 0 {
		c.TimeoutMsPerRequest = d.TimeoutMsPerRequest
	}
	if c.RateLimitMs <= 0 {
		c.RateLimitMs = d.RateLimitMs
	}
	if c.MaxConcurrentRequests <= 0 {
		c.MaxConcurrentRequests = d.MaxConcurrentRequests
	}
	if c.JobDeadline <= 0 {
		c.JobDeadline = d.JobDeadline
	}
	// RespectRobots/RobotsUserAgent are operator policy, never set by a
	// request: always take the deployment's value.
	c.RespectRobots = d.RespectRobots
	c.RobotsUserAgent = d.RobotsUserAgent
	return c
}

// ServerDefaults converts a deployment's configured crawl defaults
// (config.Config.Crawl, loaded from config/config.yaml) into the base
// Config a per-request Config is layered over.
func ServerDefaults(sc *config.Config) Config {
	return Config{
		MaxPages:              sc.Crawl.MaxPages,
		MaxDepth:              sc.Crawl.MaxDepth,
		QualityThreshold:      sc.Crawl.QualityThreshold,
		TimeoutMsPerRequest:   sc.Crawl.TimeoutMsPerRequest,
		RateLimitMs:           sc.Crawl.RateLimitMs,
		MaxConcurrentRequests: sc.Crawl.MaxConcurrentRequests,
		IncludeAnchors:        sc.Crawl.IncludeAnchors,
		RespectPathPrefix:     sc.Crawl.RespectPathPrefix,
		FollowExternalLinks:   sc.Crawl.FollowExternalLinks,
		JobDeadline:           sc.JobDeadline(),
		RespectRobots:         sc.Robots.Enabled,
		RobotsUserAgent:       sc.Robots.UserAgent,
	}
}

// Validate rejects malformed configuration synchronously, per spec.md §6's
// "Unknown keys rejected" / malformed-request handling (unknown-key
// rejection happens at JSON-decode time in the HTTP layer; this validates
// value ranges).
func (c Config) Validate() error {
	if c.MaxPages < 1 {
		return fmt.Errorf("max_pages must be >= 1")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0")
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 100 {
		return fmt.Errorf("quality_threshold must be between 0 and 100")
	}
	if c.MaxConcurrentRequests < 1 {
		return fmt.Errorf("max_concurrent_requests must be >= 1")
	}
	return nil
}
