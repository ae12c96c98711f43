package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CrawlDefaultsConfig holds the server-wide defaults applied to a job's
// Configuration enumeration (spec.md §3) when a request omits them.
type CrawlDefaultsConfig struct {
	MaxPages              int  `yaml:"maxPages"`
	MaxDepth              int  `yaml:"maxDepth"`
	QualityThreshold      int  `yaml:"qualityThreshold"`
	TimeoutMsPerRequest   int  `yaml:"timeoutMsPerRequest"`
	RateLimitMs           int  `yaml:"rateLimitMs"`
	MaxConcurrentRequests int  `yaml:"maxConcurrentRequests"`
	IncludeAnchors        bool `yaml:"includeAnchors"`
	RespectPathPrefix     bool `yaml:"respectPathPrefix"`
	FollowExternalLinks   bool `yaml:"followExternalLinks"`
	JobDeadlineMinutes    int  `yaml:"jobDeadlineMinutes"`
}

// FetchConfig holds fetcher-wide settings not part of the per-job
// Configuration enumeration.
type FetchConfig struct {
	UserAgent string `yaml:"userAgent"`
}

// RobotsConfig controls robots.txt-aware scoping (SPEC_FULL.md §6
// supplemented feature).
type RobotsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	UserAgent string `yaml:"userAgent"`
}

type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	MigrationsPath  string `yaml:"migrationsPath"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig controls the API-key bearer-token boundary (the out-of-scope
// auth system's minimal stand-in, per SPEC_FULL.md §1).
type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

type RateLimitConfig struct {
	DefaultPerMinute int `yaml:"defaultPerMinute"`
}

// RetentionConfig controls the background sweep that removes terminal jobs
// (and their cascading page results/events) past the configured grace
// period, per spec.md §3.
type RetentionConfig struct {
	Enabled             bool `yaml:"enabled"`
	CleanupIntervalMins int  `yaml:"cleanupIntervalMinutes"`
	JobGraceMinutes     int  `yaml:"jobGraceMinutes"`
}

// DedupConfig controls the seen-URL/seen-hash cache's TTL, per spec.md §4.4.
type DedupConfig struct {
	GracePeriodMinutes int `yaml:"gracePeriodMinutes"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Fetch     FetchConfig         `yaml:"fetch"`
	Crawl     CrawlDefaultsConfig `yaml:"crawl"`
	Robots    RobotsConfig        `yaml:"robots"`
	Database  DatabaseConfig      `yaml:"database"`
	Redis     RedisConfig         `yaml:"redis"`
	Auth      AuthConfig          `yaml:"auth"`
	RateLimit RateLimitConfig     `yaml:"ratelimit"`
	Retention RetentionConfig     `yaml:"retention"`
	Dedup     DedupConfig         `yaml:"dedup"`
	Metrics   MetricsConfig       `yaml:"metrics"`
}

// Default returns the configuration a fresh deployment starts from before
// any YAML file is layered on top.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Fetch:  FetchConfig{UserAgent: "docuforge-crawler/1.0 (+https://github.com/docuforge/docuforge)"},
		Crawl: CrawlDefaultsConfig{
			MaxPages:              50,
			MaxDepth:              2,
			QualityThreshold:      20,
			TimeoutMsPerRequest:   30000,
			RateLimitMs:           1000,
			MaxConcurrentRequests: 5,
			RespectPathPrefix:     true,
			JobDeadlineMinutes:    5,
		},
		Robots:    RobotsConfig{Enabled: true, UserAgent: "docuforge-crawler"},
		Database:  DatabaseConfig{MaxOpenConns: 20, MaxIdleConns: 5, MigrationsPath: "db/migrations"},
		Auth:      AuthConfig{Enabled: true},
		RateLimit: RateLimitConfig{DefaultPerMinute: 60},
		Retention: RetentionConfig{Enabled: true, CleanupIntervalMins: 15, JobGraceMinutes: 60},
		Dedup:     DedupConfig{GracePeriodMinutes: 120},
		Metrics:   MetricsConfig{Enabled: true},
	}
}

// Load reads path as YAML over top of Default, so a config file only needs
// to specify the fields it overrides.
func Load(path string) *Config {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return cfg
}

// JobDeadline returns the configured job deadline as a time.Duration.
func (cfg *Config) JobDeadline() time.Duration {
	if cfg.Crawl.JobDeadlineMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(cfg.Crawl.JobDeadlineMinutes) * time.Minute
}

// DedupGracePeriod returns the configured dedup-cache TTL as a
// time.Duration.
func (cfg *Config) DedupGracePeriod() time.Duration {
	if cfg.Dedup.GracePeriodMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(cfg.Dedup.GracePeriodMinutes) * time.Minute
}

// Validate performs basic sanity checks on the loaded configuration.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn must be set")
	}
	if cfg.Crawl.MaxPages < 1 {
		return fmt.Errorf("crawl.maxPages must be >= 1, got %d", cfg.Crawl.MaxPages)
	}
	if cfg.Crawl.MaxConcurrentRequests < 1 {
		return fmt.Errorf("crawl.maxConcurrentRequests must be >= 1, got %d", cfg.Crawl.MaxConcurrentRequests)
	}
	return nil
}
