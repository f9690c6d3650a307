package profile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-whisky/models"
	"github.com/aluiziolira/go-scrape-whisky/parser"
)

// MissingFieldError reports a page lacking something its profile marks as
// mandatory. The page is skipped; the crawl goes on.
type MissingFieldError struct {
	Site   string
	Field  string
	Source string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing %s (%s)", e.Site, e.Field, e.Source)
}

// Reason is a short label suitable for metrics.
func (e *MissingFieldError) Reason() string {
	return "missing_" + e.Field
}

// Extract applies the profile to a fetched product page.
func (p *Profile) Extract(doc *goquery.Document, pageURL string) (*models.Whisky, error) {
	names := make([]string, 0, len(p.Blocks))
	for name := range p.Blocks {
		names = append(names, name)
	}
	sort.Strings(names)

	blocks := make(map[string][]string, len(p.Blocks))
	for _, name := range names {
		block := p.Blocks[name]
		sel := doc.Find(block.Selector).First()
		if sel.Length() == 0 {
			if block.Required {
				return nil, &MissingFieldError{Site: p.Name, Field: name, Source: block.Selector}
			}
			continue
		}
		blocks[name] = TextTokens(sel)
	}

	w := &models.Whisky{
		Site:      p.Name,
		URL:       pageURL,
		ScrapedAt: time.Now(),
	}
	for _, rule := range p.Fields {
		text, ok := p.ruleText(doc, blocks, rule)
		if ok {
			ok = assign(w, rule, text)
		}
		if !ok && rule.Required {
			return nil, &MissingFieldError{Site: p.Name, Field: string(rule.Field), Source: rule.source()}
		}
	}
	return w, nil
}

func (p *Profile) ruleText(doc *goquery.Document, blocks map[string][]string, rule Rule) (string, bool) {
	var (
		text string
		ok   bool
	)
	switch {
	case rule.Selector != "" && rule.FullText:
		text, ok = FullText(doc.Find(rule.Selector))
	case rule.Selector != "":
		text, ok = FirstTextWithin(doc.Selection, rule.Selector)
	default:
		tokens, found := blocks[rule.Block]
		if !found {
			return "", false
		}
		text, ok = parser.LookupColumn(tokens, rule.Column)
	}
	if !ok {
		return "", false
	}

	if rule.Split != "" {
		parts := strings.Split(text, rule.Split)
		if rule.Index >= len(parts) {
			return "", false
		}
		text = parts[rule.Index]
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	for _, sentinel := range rule.Skip {
		if text == sentinel {
			return "", false
		}
	}
	if rule.Contains != "" && !strings.Contains(text, rule.Contains) {
		return "", false
	}
	return text, true
}

// assign parses text with the rule's parser and stores it on w. It reports
// false when the text does not parse.
func assign(w *models.Whisky, rule Rule, text string) bool {
	switch rule.Parse {
	case KindPrice:
		price, ok := parser.ParsePrice(text)
		if !ok {
			return false
		}
		w.Price = &price
	case KindInt:
		age, ok := parser.ParseInt(text)
		if !ok {
			return false
		}
		w.Age = &age
	case KindABV:
		abv, ok := parser.ParseABV(text)
		if !ok {
			return false
		}
		w.ABV = &abv
	case KindFlag:
		met := strings.Contains(text, rule.Match)
		w.ReserveMet = &met
	case KindDate, KindYear:
		parse := parser.ParseWeakDate
		if rule.Parse == KindYear {
			parse = parser.WeakDateFromYear
		}
		date, ok := parse(text)
		if !ok {
			return false
		}
		if rule.Field == FieldBottled {
			w.Bottled = &date
		} else {
			w.Vintage = &date
		}
	default:
		assignText(w, rule.Field, text)
	}
	return true
}

func assignText(w *models.Whisky, field Field, text string) {
	switch field {
	case FieldName:
		w.Name = text
	case FieldDistillery:
		w.Distillery = &text
	case FieldRegion:
		w.Region = &text
	case FieldBottler:
		w.Bottler = &text
	case FieldCaskType:
		w.CaskType = &text
	case FieldBottleSize:
		w.BottleSize = &text
	case FieldCatalogID:
		w.CatalogID = &text
	case FieldScore:
		w.Score = &text
	}
}
