package crawler

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

// frontierItem is one entry in the BFS queue. noDepthLimit marks branches
// promoted by priority-path detection, which are exempt from the depth cap.
type frontierItem struct {
	url          string
	parsed       *url.URL
	depth        int
	noDepthLimit bool
}

// stopReason records why the crawl loop halted.
type stopReason string

const (
	stopDeadlineExceeded  stopReason = "deadline_exceeded"
	stopCapReached        stopReason = "cap_reached"
	stopFrontierExhausted stopReason = "frontier_exhausted"
	stopCancelled         stopReason = "cancelled"
)

// crawlState is created fresh per crawl and owned exclusively by the
// scheduling goroutine; nothing here needs locking.
type crawlState struct {
	visited       map[string]struct{}
	found         map[string]struct{}
	external      map[string]struct{}
	priorityPaths map[string]struct{}
	adaptiveMode  bool
	startedAt     time.Time
	timedOut      bool
}

func newCrawlState() *crawlState {
	return &crawlState{
		visited:       make(map[string]struct{}),
		found:         make(map[string]struct{}),
		external:      make(map[string]struct{}),
		priorityPaths: make(map[string]struct{}),
		startedAt:     time.Now(),
	}
}

// underPriorityPath reports whether path lies under any promoted prefix.
func (s *crawlState) underPriorityPath(path string) bool {
	for prefix := range s.priorityPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (s *crawlState) priorityList() []string {
	return sortedKeys(s.priorityPaths)
}

func (s *crawlState) externalList() []string {
	return sortedKeys(s.external)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
