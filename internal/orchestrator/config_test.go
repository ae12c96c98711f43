package orchestrator

import (
	"testing"

	"docuforge/internal/config"
)

func TestWithBaseFillsOnlyUnsetFields(t *testing.T) {
	base := Config{MaxPages: 10, MaxDepth: 3, MaxConcurrentRequests: 2}
	c := Config{MaxPages: 5}

	got := c.WithBase(base)
	if got.MaxPages != 5 {
		t.Fatalf("expected explicitly-set MaxPages to survive, got %d", got.MaxPages)
	}
	if got.MaxDepth != 3 {
		t.Fatalf("expected unset MaxDepth to take base value, got %d", got.MaxDepth)
	}
	if got.MaxConcurrentRequests != 2 {
		t.Fatalf("expected unset MaxConcurrentRequests to take base value, got %d", got.MaxConcurrentRequests)
	}
}

func TestWithBaseAlwaysTakesRobotsPolicyFromBase(t *testing.T) {
	base := Config{RespectRobots: true, RobotsUserAgent: "example-bot"}
	c := Config{RespectRobots: false, RobotsUserAgent: "ignored"}

	got := c.WithBase(base)
	if !got.RespectRobots || got.RobotsUserAgent != "example-bot" {
		t.Fatalf("expected robots policy to come from base regardless of cfg, got %+v", got)
	}
}

func TestServerDefaultsReflectsConfiguredCrawlSection(t *testing.T) {
	sc := config.Default()
	sc.Crawl.MaxPages = 123
	sc.Robots.Enabled = false

	got := ServerDefaults(sc)
	if got.MaxPages != 123 {
		t.Fatalf("expected ServerDefaults to reflect config.Crawl.MaxPages, got %d", got.MaxPages)
	}
	if got.RespectRobots {
		t.Fatalf("expected RespectRobots to reflect config.Robots.Enabled=false")
	}
}

func TestValidateRejectsOutOfRangeFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPages = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for max_pages=0")
	}

	cfg = DefaultConfig()
	cfg.QualityThreshold = 101
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for quality_threshold>100")
	}
}
