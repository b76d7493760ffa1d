package config

import (
	"strings"
	"testing"
	"time"

	"github.com/Adriangg08/carta-mcp/pkg/types"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadFromReaderMergesOverDefaults(t *testing.T) {
	doc := `
crawl:
  max_depth: 4
  global_timeout: 90s
  per_page_timeout: 5
  filter_mode: custom
  include_patterns: ["(?i)carta", "  ", "(?i)menu"]
fetch:
  user_agent: "probe/1.0"
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Crawl.MaxDepth != 4 {
		t.Fatalf("max_depth = %d", cfg.Crawl.MaxDepth)
	}
	// Untouched fields keep their defaults.
	if cfg.Crawl.MaxURLs != 50 || cfg.Crawl.BatchSize != 5 {
		t.Fatalf("defaults lost: max_urls=%d batch_size=%d", cfg.Crawl.MaxURLs, cfg.Crawl.BatchSize)
	}
	if cfg.Crawl.GlobalTimeout.Duration != 90*time.Second {
		t.Fatalf("global_timeout = %v", cfg.Crawl.GlobalTimeout.Duration)
	}
	// Bare numbers are read as seconds.
	if cfg.Crawl.PerPageTimeout.Duration != 5*time.Second {
		t.Fatalf("per_page_timeout = %v", cfg.Crawl.PerPageTimeout.Duration)
	}
	if got := cfg.Crawl.IncludePatterns; len(got) != 2 || got[0] != "(?i)carta" || got[1] != "(?i)menu" {
		t.Fatalf("include_patterns = %v", got)
	}
	if cfg.Fetch.UserAgent != "probe/1.0" {
		t.Fatalf("user_agent = %q", cfg.Fetch.UserAgent)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	doc := `
crawl:
  max_depht: 3
`
	if _, err := LoadFromReader(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestLoadFromReaderRejectsBadValues(t *testing.T) {
	docs := map[string]string{
		"bad filter mode": "crawl:\n  filter_mode: aggressive\n",
		"bad duration":    "crawl:\n  global_timeout: pronto\n",
		"zero max_urls":   "crawl:\n  max_urls: 0\n",
		"empty ua":        "fetch:\n  user_agent: \"   \"\n",
	}
	for name, doc := range docs {
		if _, err := LoadFromReader(strings.NewReader(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestFilterModeNormalised(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("crawl:\n  filter_mode: \" MENU \"\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Crawl.FilterMode != string(types.FilterMenu) {
		t.Fatalf("filter_mode = %q", cfg.Crawl.FilterMode)
	}
}

func TestToRequest(t *testing.T) {
	cfg := Default()
	cfg.Crawl.ExactURLPrefix = true
	cfg.Crawl.SlidingTimeout = true

	req := cfg.ToRequest("https://example.com/carta")

	if req.SeedURL != "https://example.com/carta" {
		t.Fatalf("seed = %q", req.SeedURL)
	}
	if req.MaxDepth != 2 || req.MaxURLs != 50 || req.BatchSize != 5 {
		t.Fatalf("budgets = %d/%d/%d", req.MaxDepth, req.MaxURLs, req.BatchSize)
	}
	if req.GlobalTimeout != 60*time.Second || req.PerPageTimeout != 10*time.Second {
		t.Fatalf("timeouts = %v/%v", req.GlobalTimeout, req.PerPageTimeout)
	}
	if req.FilterMode != types.FilterMenu {
		t.Fatalf("filter mode = %q", req.FilterMode)
	}
	if !req.AdaptiveSearch || !req.ExactURLPrefix || !req.SlidingTimeout {
		t.Fatal("boolean options not carried over")
	}
}
