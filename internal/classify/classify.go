// Package classify decides what the crawler does with a discovered link:
// whether it belongs to the crawled domain, whether it survives the
// configured pattern filters, and whether it promotes a priority path.
package classify

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/Adriangg08/carta-mcp/pkg/types"
)

// Normalize canonicalises a link for frontier and dedupe purposes: the
// fragment and query string are dropped and a single trailing slash is
// removed unless the path is the root. Normalize is idempotent.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	u.ForceQuery = false
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}
	return u.String(), nil
}

// IsInternal reports whether target belongs to the crawl scope defined by
// seed. With exactPrefix the scope narrows from the whole hostname to URLs
// under the seed's origin plus its path stripped of any file extension.
func IsInternal(target, seed *url.URL, exactPrefix bool) bool {
	if target == nil || seed == nil {
		return false
	}
	if !exactPrefix {
		return strings.EqualFold(target.Hostname(), seed.Hostname())
	}
	prefix := seed.Scheme + "://" + seed.Host + strings.TrimSuffix(seed.Path, path.Ext(seed.Path))
	return strings.HasPrefix(target.String(), prefix)
}

// Filter applies include/exclude pattern sets to discovered links.
// Exclude patterns always take precedence over include patterns.
type Filter struct {
	mode    types.FilterMode
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewFilter builds a filter for the given mode. Menu mode uses the built-in
// pattern sets; custom mode compiles the caller's patterns and fails on the
// first invalid regular expression.
func NewFilter(mode types.FilterMode, include, exclude []string) (*Filter, error) {
	switch mode {
	case types.FilterNone, "":
		return &Filter{mode: types.FilterNone}, nil
	case types.FilterMenu:
		return &Filter{mode: mode, include: menuInclude, exclude: menuExclude}, nil
	case types.FilterCustom:
		inc, err := compilePatterns(include)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern: %w", err)
		}
		exc, err := compilePatterns(exclude)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern: %w", err)
		}
		return &Filter{mode: mode, include: inc, exclude: exc}, nil
	default:
		return nil, fmt.Errorf("unsupported filter mode %q", mode)
	}
}

// Admit reports whether a discovered link passes the filter. The anchor text
// participates in include matching only; a custom filter with no include
// patterns admits everything not excluded.
func (f *Filter) Admit(rawURL, urlPath, anchor string) bool {
	if f == nil || f.mode == types.FilterNone {
		return true
	}
	for _, pat := range f.exclude {
		if pat.MatchString(rawURL) || pat.MatchString(urlPath) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, pat := range f.include {
		if pat.MatchString(rawURL) || pat.MatchString(urlPath) || pat.MatchString(anchor) {
			return true
		}
	}
	return false
}

// FinalMatch is the include-only recheck applied when assembling the final
// result. Exclusions already happened during discovery and are not
// re-evaluated here.
func (f *Filter) FinalMatch(rawURL, urlPath string) bool {
	if f == nil || f.mode == types.FilterNone || len(f.include) == 0 {
		return true
	}
	for _, pat := range f.include {
		if pat.MatchString(rawURL) || pat.MatchString(urlPath) {
			return true
		}
	}
	return false
}

// DetectPriorityPath matches a URL path against the carta/menu path patterns
// and, on a match, returns the path's first segment as a promotable prefix.
func DetectPriorityPath(urlPath string) (string, bool) {
	if urlPath == "" || urlPath == "/" {
		return "", false
	}
	for _, pat := range priorityPaths {
		if pat.MatchString(urlPath) {
			if seg := firstSegment(urlPath); seg != "" {
				return seg, true
			}
			return "", false
		}
	}
	return "", false
}

func firstSegment(urlPath string) string {
	trimmed := strings.Trim(urlPath, "/")
	if trimmed == "" {
		return ""
	}
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return "/" + trimmed
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		pat, err := regexp.Compile(raw)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, pat)
	}
	return compiled, nil
}
