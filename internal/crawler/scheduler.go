// Package crawler implements the adaptive breadth-first domain crawler: a
// frontier drained in FIFO waves of bounded concurrency, link
// classification and filtering, priority-path promotion, and the
// per-page/global dual-timeout model.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/Adriangg08/carta-mcp/internal/classify"
	"github.com/Adriangg08/carta-mcp/internal/fetcher"
	"github.com/Adriangg08/carta-mcp/pkg/types"
)

// ErrInvalidSeed reports a seed URL that does not parse as absolute.
var ErrInvalidSeed = errors.New("invalid seed url")

// Scheduler drives crawls against a shared fetcher. It is safe to run
// multiple crawls from one Scheduler; each call owns its own state and the
// underlying browser serializes only at its page-creation boundary.
type Scheduler struct {
	fetcher fetcher.Fetcher
	logger  *slog.Logger
}

// NewScheduler builds a scheduler on top of the given fetcher.
func NewScheduler(f fetcher.Fetcher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{fetcher: f, logger: logger}
}

// Crawl explores the seed's domain breadth-first and returns the discovered
// URLs ranked and filtered for menu-likeness. It fails fast on an
// unparsable seed; every other failure is recovered per page. Global
// timeout expiry is not an error, it is reported via TimedOut.
func (s *Scheduler) Crawl(ctx context.Context, req types.CrawlRequest) (*types.CrawlResult, error) {
	req = withDefaults(req)

	seed, err := url.Parse(req.SeedURL)
	if err != nil || !seed.IsAbs() || seed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, req.SeedURL)
	}
	seedNorm, err := classify.Normalize(req.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, req.SeedURL)
	}

	filter, err := classify.NewFilter(req.FilterMode, req.IncludePatterns, req.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	state := newCrawlState()
	state.found[seedNorm] = struct{}{}
	frontier := []frontierItem{{url: seedNorm, parsed: seed, depth: 0}}

	logger := s.logger.With("domain", seed.Hostname())
	logger.Info("crawl starting",
		"max_depth", req.MaxDepth,
		"max_urls", req.MaxURLs,
		"batch_size", req.BatchSize,
		"filter_mode", string(req.FilterMode),
		"adaptive", req.AdaptiveSearch,
	)

	deadline := state.startedAt.Add(req.GlobalTimeout)
	reason := stopFrontierExhausted

	for {
		if len(frontier) == 0 {
			reason = stopFrontierExhausted
			break
		}
		if len(state.found) >= req.MaxURLs {
			reason = stopCapReached
			break
		}
		if time.Now().After(deadline) {
			state.timedOut = true
			reason = stopDeadlineExceeded
			break
		}
		if ctx.Err() != nil {
			reason = stopCancelled
			break
		}

		n := min(req.BatchSize, len(frontier))
		wave := frontier[:n]
		frontier = frontier[n:]

		// Membership and depth checks happen here, before any fetch is
		// issued, so a URL can never be visited or enqueued twice from
		// within the same wave.
		runnable := wave[:0:0]
		for _, item := range wave {
			if _, seen := state.visited[item.url]; seen {
				continue
			}
			if item.depth >= req.MaxDepth && !item.noDepthLimit {
				continue
			}
			state.visited[item.url] = struct{}{}
			// Depth-0 items always run: they seed priority-path discovery.
			if state.adaptiveMode && item.depth > 0 && !state.underPriorityPath(item.parsed.Path) {
				continue
			}
			runnable = append(runnable, item)
		}

		snapshots := s.fetchWave(ctx, runnable, req.PerPageTimeout)

		for i, item := range runnable {
			snap := snapshots[i]
			if snap == nil {
				continue
			}
			for _, link := range snap.Links {
				s.ingestLink(state, &frontier, item, link, req, filter, seed)
			}
		}

		if req.AdaptiveSearch && !state.adaptiveMode &&
			len(state.priorityPaths) > 0 && waveAllDeep(wave) {
			// One-way latch: from here on, deep items outside the promoted
			// prefixes are pruned.
			state.adaptiveMode = true
			logger.Info("adaptive mode engaged", "priority_paths", state.priorityList())
		}

		if req.SlidingTimeout {
			deadline = time.Now().Add(req.GlobalTimeout)
		}
	}

	logger.Info("crawl finished",
		"reason", string(reason),
		"urls_found", len(state.found),
		"visited", len(state.visited),
		"elapsed", time.Since(state.startedAt).String(),
	)

	return assemble(seed, state, filter, req.FilterMode), nil
}

// fetchWave fetches the wave items concurrently, each raced against the
// per-page timeout. A timeout or fetch failure abandons that item only;
// the losing fetch is cancelled through its context.
func (s *Scheduler) fetchWave(ctx context.Context, items []frontierItem, perPage time.Duration) []*types.PageSnapshot {
	snapshots := make([]*types.PageSnapshot, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item frontierItem) {
			defer wg.Done()
			pageCtx, cancel := context.WithTimeout(ctx, perPage)
			defer cancel()
			snap, err := s.fetcher.Fetch(pageCtx, item.url)
			if err != nil {
				s.logger.Warn("page abandoned", "url", item.url, "depth", item.depth, "error", err)
				return
			}
			snapshots[i] = snap
		}(i, item)
	}
	wg.Wait()
	return snapshots
}

// ingestLink normalizes and classifies one discovered link and updates the
// crawl state. Runs on the scheduling goroutine only.
func (s *Scheduler) ingestLink(state *crawlState, frontier *[]frontierItem, parent frontierItem, link types.Link, req types.CrawlRequest, filter *classify.Filter, seed *url.URL) {
	norm, err := classify.Normalize(link.URL)
	if err != nil {
		return
	}
	parsed, err := url.Parse(norm)
	if err != nil {
		return
	}

	if !classify.IsInternal(parsed, seed, req.ExactURLPrefix) {
		if req.IncludeExternal {
			state.external[norm] = struct{}{}
		}
		return
	}

	if !filter.Admit(norm, parsed.Path, link.Text) {
		return
	}

	prefix, matched := classify.DetectPriorityPath(parsed.Path)
	if matched && parent.depth == 0 && req.AdaptiveSearch {
		if _, known := state.priorityPaths[prefix]; !known {
			state.priorityPaths[prefix] = struct{}{}
			s.logger.Debug("priority path promoted", "prefix", prefix, "url", norm)
		}
	}

	if _, known := state.found[norm]; known {
		return
	}
	if len(state.found) >= req.MaxURLs {
		return
	}
	state.found[norm] = struct{}{}

	noLimit := parent.noDepthLimit || matched
	if noLimit || parent.depth+1 < req.MaxDepth {
		*frontier = append(*frontier, frontierItem{
			url:          norm,
			parsed:       parsed,
			depth:        parent.depth + 1,
			noDepthLimit: noLimit,
		})
	}
}

// waveAllDeep reports whether every dequeued item of the wave sat below the
// seed level. The adaptive latch may only fire on such waves, so depth-0
// stragglers keep full exploration alive.
func waveAllDeep(wave []frontierItem) bool {
	for _, item := range wave {
		if item.depth == 0 {
			return false
		}
	}
	return len(wave) > 0
}

func withDefaults(req types.CrawlRequest) types.CrawlRequest {
	if req.MaxDepth < 0 {
		req.MaxDepth = 0
	}
	if req.MaxURLs <= 0 {
		req.MaxURLs = 50
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 5
	}
	if req.GlobalTimeout <= 0 {
		req.GlobalTimeout = 60 * time.Second
	}
	if req.PerPageTimeout <= 0 {
		req.PerPageTimeout = 10 * time.Second
	}
	if req.FilterMode == "" {
		req.FilterMode = types.FilterNone
	}
	return req
}
