package fetcher

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Adriangg08/carta-mcp/pkg/types"
)

// Extract parses rawHTML fetched from base and derives the page snapshot:
// title, metadata, visible text, and outbound links. Script, style, noscript
// and iframe elements are removed before anything is read, as are inline
// style attributes. Extract never fails; unparseable input yields an empty
// snapshot titled with the URL.
func Extract(rawHTML string, base *url.URL) *types.PageSnapshot {
	snap := &types.PageSnapshot{
		URL:      base.String(),
		Title:    base.String(),
		Metadata: make(map[string]string),
	}
	if strings.TrimSpace(rawHTML) == "" {
		return snap
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return snap
	}

	doc.Find("script,style,noscript,iframe").Remove()
	doc.Find("[style]").RemoveAttr("style")

	if title := collapseWhitespace(doc.Find("title").First().Text()); title != "" {
		snap.Title = title
	}

	// Last write wins on duplicate meta names.
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || strings.TrimSpace(name) == "" {
			name, _ = s.Attr("property")
		}
		name = strings.TrimSpace(name)
		content, _ := s.Attr("content")
		if name == "" {
			return
		}
		snap.Metadata[name] = content
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		anchor := collapseWhitespace(s.Text())
		if href == "" || anchor == "" {
			return
		}
		if strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			// Malformed href, not worth reporting.
			return
		}
		snap.Links = append(snap.Links, types.Link{URL: resolved.String(), Text: anchor})
	})

	snap.CleanText = visibleText(doc)
	return snap
}

// visibleText walks the body's text nodes and joins them with single spaces.
func visibleText(doc *goquery.Document) string {
	nodes := doc.Find("body").Nodes
	if len(nodes) == 0 {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if text := collapseWhitespace(n.Data); text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		case html.ElementNode:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
	}
	walk(nodes[0])
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
