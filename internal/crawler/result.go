package crawler

import (
	"net/url"
	"sort"
	"strings"

	"github.com/Adriangg08/carta-mcp/internal/classify"
	"github.com/Adriangg08/carta-mcp/pkg/types"
)

// assemble builds the final result from the finished crawl state. Exclude
// patterns already ran during discovery; only the include check is applied
// again here. Both URL lists share one ordering: first non-empty path
// segment, then full URL, ascending, so that with filtering disabled the
// filtered list equals the full list exactly.
func assemble(seed *url.URL, state *crawlState, filter *classify.Filter, mode types.FilterMode) *types.CrawlResult {
	urls := make([]string, 0, len(state.found))
	for u := range state.found {
		urls = append(urls, u)
	}
	sortByPathSegment(urls)

	var filtered []string
	if mode == types.FilterNone {
		filtered = append([]string(nil), urls...)
	} else {
		filtered = make([]string, 0, len(urls))
		for _, u := range urls {
			if filter.FinalMatch(u, pathOf(u)) {
				filtered = append(filtered, u)
			}
		}
	}

	return &types.CrawlResult{
		Domain:        seed.Hostname(),
		URLsFound:     len(urls),
		URLs:          urls,
		FilteredURLs:  filtered,
		PriorityPaths: state.priorityList(),
		ExternalURLs:  state.externalList(),
		TimedOut:      state.timedOut,
	}
}

func sortByPathSegment(urls []string) {
	sort.Slice(urls, func(i, j int) bool {
		si, sj := firstPathSegment(urls[i]), firstPathSegment(urls[j])
		if si != sj {
			return si < sj
		}
		return urls[i] < urls[j]
	})
}

// firstPathSegment returns the first non-empty path segment of the URL, or
// the empty string for root-level URLs, which therefore sort first.
func firstPathSegment(raw string) string {
	trimmed := strings.Trim(pathOf(raw), "/")
	if trimmed == "" {
		return ""
	}
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
