package crawl

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Entry is one <loc> listed in a sitemap. LastMod is carried for logging
// only; it never decides whether a location is visited.
type Entry struct {
	Loc     string
	LastMod string
}

const (
	sitemapIndexEntries = "//sitemap"
	urlsetEntries       = "//url"
)

// ParseSitemapIndex lists the child sitemaps of a sitemap index.
func ParseSitemapIndex(body []byte) ([]Entry, error) {
	return parseEntries(body, sitemapIndexEntries)
}

// ParseURLSet lists the page locations of a urlset sitemap.
func ParseURLSet(body []byte) ([]Entry, error) {
	return parseEntries(body, urlsetEntries)
}

func parseEntries(body []byte, expr string) ([]Entry, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	nodes, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("query sitemap: %w", err)
	}

	entries := make([]Entry, 0, len(nodes))
	for _, node := range nodes {
		loc := node.SelectElement("loc")
		if loc == nil {
			continue
		}
		entry := Entry{Loc: strings.TrimSpace(loc.InnerText())}
		if entry.Loc == "" {
			continue
		}
		if lastmod := node.SelectElement("lastmod"); lastmod != nil {
			entry.LastMod = strings.TrimSpace(lastmod.InnerText())
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
