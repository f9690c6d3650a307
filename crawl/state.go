// Package crawl drives the sitemap traversal: a root sitemap index leads to
// sub-sitemaps, which lead to product pages that are handed to a site
// profile.
package crawl

import "fmt"

// State tags a pending visit with the kind of document it will fetch.
type State int

const (
	RootSitemap State = iota
	SubSitemap
	PageDetail
)

// States lists every state in traversal order.
func States() []State {
	return []State{RootSitemap, SubSitemap, PageDetail}
}

// Next returns the state of visits discovered in a document of state s.
// PageDetail is terminal.
func (s State) Next() (State, bool) {
	switch s {
	case RootSitemap:
		return SubSitemap, true
	case SubSitemap:
		return PageDetail, true
	case PageDetail:
		return 0, false
	default:
		return 0, false
	}
}

func (s State) String() string {
	switch s {
	case RootSitemap:
		return "root_sitemap"
	case SubSitemap:
		return "sub_sitemap"
	case PageDetail:
		return "page_detail"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
