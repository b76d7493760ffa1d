// Package types holds the data model shared between the crawler, the
// fetcher, and downstream consumers of crawl results.
package types

import "time"

// FilterMode selects which link pattern set the crawler applies.
type FilterMode string

const (
	// FilterNone disables link filtering entirely.
	FilterNone FilterMode = "none"
	// FilterMenu applies the built-in menu/carta pattern sets.
	FilterMenu FilterMode = "menu"
	// FilterCustom applies user-supplied include/exclude patterns.
	FilterCustom FilterMode = "custom"
)

// CrawlRequest configures a single domain crawl.
type CrawlRequest struct {
	SeedURL         string
	MaxDepth        int
	MaxURLs         int
	IncludeExternal bool
	GlobalTimeout   time.Duration
	PerPageTimeout  time.Duration
	BatchSize       int
	FilterMode      FilterMode
	IncludePatterns []string
	ExcludePatterns []string
	AdaptiveSearch  bool
	ExactURLPrefix  bool

	// SlidingTimeout resets the global deadline whenever a wave completes
	// instead of measuring it from crawl start. Off by default.
	SlidingTimeout bool
}

// Link is an outbound link discovered on a page.
type Link struct {
	URL  string
	Text string
}

// PageSnapshot is the extracted view of a fetched page.
type PageSnapshot struct {
	URL       string
	Title     string
	CleanText string
	Links     []Link
	Metadata  map[string]string
}

// CrawlResult is the final, serializable outcome of a crawl.
type CrawlResult struct {
	Domain        string   `json:"domain"`
	URLsFound     int      `json:"urls_found"`
	URLs          []string `json:"urls"`
	FilteredURLs  []string `json:"filtered_urls"`
	PriorityPaths []string `json:"priority_paths,omitempty"`
	ExternalURLs  []string `json:"external_urls,omitempty"`
	TimedOut      bool     `json:"timed_out"`
}
