// Package config loads and validates the crawler configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Adriangg08/carta-mcp/pkg/types"
)

// Config captures everything needed to run a menu-discovery crawl.
type Config struct {
	Crawl     CrawlConfig     `yaml:"crawl"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Rendering RenderingConfig `yaml:"rendering"`
	DB        SQLConfig       `yaml:"db"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CrawlConfig controls the frontier, budgets, and link filtering.
type CrawlConfig struct {
	MaxDepth        int      `yaml:"max_depth"`
	MaxURLs         int      `yaml:"max_urls"`
	BatchSize       int      `yaml:"batch_size"`
	GlobalTimeout   Duration `yaml:"global_timeout"`
	PerPageTimeout  Duration `yaml:"per_page_timeout"`
	FilterMode      string   `yaml:"filter_mode"`
	IncludePatterns []string `yaml:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	AdaptiveSearch  bool     `yaml:"adaptive_search"`
	ExactURLPrefix  bool     `yaml:"exact_url_prefix"`
	IncludeExternal bool     `yaml:"include_external_links"`
	SlidingTimeout  bool     `yaml:"sliding_timeout"`
}

// FetchConfig controls the plain HTTP fetch path.
type FetchConfig struct {
	UserAgent      string            `yaml:"user_agent"`
	Headers        map[string]string `yaml:"headers"`
	RequestTimeout Duration          `yaml:"request_timeout"`
	MaxBodyBytes   int64             `yaml:"max_body_bytes"`
}

// RenderingConfig controls the headless-browser fallback.
type RenderingConfig struct {
	Enabled         bool     `yaml:"enabled"`
	DisableHeadless bool     `yaml:"disable_headless"`
	SettleDelay     Duration `yaml:"settle_delay"`
}

// SQLConfig describes the optional Postgres sink for crawl results.
type SQLConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Crawl: CrawlConfig{
			MaxDepth:       2,
			MaxURLs:        50,
			BatchSize:      5,
			GlobalTimeout:  DurationFrom(60 * time.Second),
			PerPageTimeout: DurationFrom(10 * time.Second),
			FilterMode:     string(types.FilterMenu),
			AdaptiveSearch: true,
		},
		Fetch: FetchConfig{
			UserAgent:      "carta-mcp-crawler/1.0",
			Headers:        map[string]string{},
			RequestTimeout: DurationFrom(8 * time.Second),
			MaxBodyBytes:   5 * 1024 * 1024,
		},
		Rendering: RenderingConfig{
			Enabled:     true,
			SettleDelay: DurationFrom(500 * time.Millisecond),
		},
		DB: SQLConfig{
			AutoMigrate: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader on top of
// the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces required invariants for the crawler configuration.
func (c Config) Validate() error {
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0 (got %d)", c.Crawl.MaxDepth)
	}
	if c.Crawl.MaxURLs <= 0 {
		return fmt.Errorf("crawl.max_urls must be > 0 (got %d)", c.Crawl.MaxURLs)
	}
	if c.Crawl.BatchSize <= 0 {
		return fmt.Errorf("crawl.batch_size must be > 0 (got %d)", c.Crawl.BatchSize)
	}
	if c.Crawl.GlobalTimeout.IsZero() {
		return fmt.Errorf("crawl.global_timeout must be set")
	}
	if c.Crawl.PerPageTimeout.IsZero() {
		return fmt.Errorf("crawl.per_page_timeout must be set")
	}
	switch types.FilterMode(c.Crawl.FilterMode) {
	case types.FilterNone, types.FilterMenu, types.FilterCustom:
	default:
		return fmt.Errorf("crawl.filter_mode must be one of none, menu, custom (got %q)", c.Crawl.FilterMode)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		return fmt.Errorf("fetch.user_agent must be set")
	}
	return nil
}

func (c *Config) normalise() {
	c.Crawl.FilterMode = strings.ToLower(strings.TrimSpace(c.Crawl.FilterMode))
	if c.Crawl.FilterMode == "" {
		c.Crawl.FilterMode = string(types.FilterNone)
	}
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.Headers == nil {
		c.Fetch.Headers = map[string]string{}
	}
	c.Crawl.IncludePatterns = trimNonEmpty(c.Crawl.IncludePatterns)
	c.Crawl.ExcludePatterns = trimNonEmpty(c.Crawl.ExcludePatterns)
}

// ToRequest converts the crawl section into a request for the given seed.
func (c Config) ToRequest(seedURL string) types.CrawlRequest {
	return types.CrawlRequest{
		SeedURL:         seedURL,
		MaxDepth:        c.Crawl.MaxDepth,
		MaxURLs:         c.Crawl.MaxURLs,
		BatchSize:       c.Crawl.BatchSize,
		GlobalTimeout:   c.Crawl.GlobalTimeout.Duration,
		PerPageTimeout:  c.Crawl.PerPageTimeout.Duration,
		FilterMode:      types.FilterMode(c.Crawl.FilterMode),
		IncludePatterns: c.Crawl.IncludePatterns,
		ExcludePatterns: c.Crawl.ExcludePatterns,
		AdaptiveSearch:  c.Crawl.AdaptiveSearch,
		ExactURLPrefix:  c.Crawl.ExactURLPrefix,
		IncludeExternal: c.Crawl.IncludeExternal,
		SlidingTimeout:  c.Crawl.SlidingTimeout,
	}
}

func trimNonEmpty(values []string) []string {
	cleaned := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	return cleaned
}
