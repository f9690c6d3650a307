package crawl

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-whisky/models"
	"github.com/aluiziolira/go-scrape-whisky/profile"
)

// ErrUnknownState is returned for a visit tagged with a state the machine
// has no transition for.
var ErrUnknownState = errors.New("crawl: unknown state")

// Visit is a follow-up fetch discovered in a sitemap.
type Visit struct {
	URL     string
	State   State
	LastMod string
}

// Outcome is everything a single fetched document produced. At most one of
// Record and Skip is set, and only for PageDetail documents.
type Outcome struct {
	Visits []Visit
	Record *models.Whisky
	Skip   *profile.MissingFieldError
}

// Machine applies one site profile to fetched documents. It keeps no state
// between calls and is safe for concurrent use.
type Machine struct {
	Profile *profile.Profile
}

// NewMachine builds a machine for p.
func NewMachine(p *profile.Profile) *Machine {
	return &Machine{Profile: p}
}

// Handle processes the body fetched from pageURL for a visit tagged state.
// Errors are limited to that document: unreadable sitemaps or pages, or an
// unknown state. A page missing mandatory fields is not an error; it comes
// back as Outcome.Skip.
func (m *Machine) Handle(state State, pageURL string, body []byte) (Outcome, error) {
	switch state {
	case RootSitemap:
		entries, err := ParseSitemapIndex(body)
		if err != nil {
			return Outcome{}, fmt.Errorf("%s %s: %w", state, pageURL, err)
		}
		return Outcome{Visits: m.follow(state, entries, m.Profile.SitemapFilter)}, nil
	case SubSitemap:
		entries, err := ParseURLSet(body)
		if err != nil {
			return Outcome{}, fmt.Errorf("%s %s: %w", state, pageURL, err)
		}
		return Outcome{Visits: m.follow(state, entries, m.Profile.PageFilter)}, nil
	case PageDetail:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return Outcome{}, fmt.Errorf("%s %s: parse page: %w", state, pageURL, err)
		}
		record, err := m.Profile.Extract(doc, pageURL)
		if err != nil {
			var missing *profile.MissingFieldError
			if errors.As(err, &missing) {
				return Outcome{Skip: missing}, nil
			}
			return Outcome{}, fmt.Errorf("%s %s: %w", state, pageURL, err)
		}
		return Outcome{Record: record}, nil
	default:
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownState, state)
	}
}

func (m *Machine) follow(state State, entries []Entry, filter string) []Visit {
	next, ok := state.Next()
	if !ok {
		return nil
	}
	visits := make([]Visit, 0, len(entries))
	for _, entry := range entries {
		if filter != "" && !strings.Contains(entry.Loc, filter) {
			continue
		}
		visits = append(visits, Visit{URL: entry.Loc, State: next, LastMod: entry.LastMod})
	}
	return visits
}
