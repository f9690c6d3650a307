// Package models defines data structures for the scraper.
package models

import (
	"fmt"
	"time"
)

// Currency is one of the currencies recognised by its symbol.
type Currency string

const (
	GBP Currency = "GBP"
	KRW Currency = "KRW"
	USD Currency = "USD"
	EUR Currency = "EUR"
	JPY Currency = "JPY"
)

var currencySymbols = map[rune]Currency{
	'£': GBP,
	'₩': KRW,
	'$': USD,
	'€': EUR,
	'¥': JPY,
}

// CurrencyFromSymbol maps a currency symbol to its Currency. Codes such as
// "USD" are not recognised.
func CurrencyFromSymbol(symbol rune) (Currency, bool) {
	c, ok := currencySymbols[symbol]
	return c, ok
}

// Symbol returns the single symbol associated with c.
func (c Currency) Symbol() string {
	for symbol, currency := range currencySymbols {
		if currency == c {
			return string(symbol)
		}
	}
	return ""
}

// Price is an amount tagged with the currency it was quoted in.
type Price struct {
	Value    float64  `json:"value"`
	Currency Currency `json:"currency"`
}

func (p Price) String() string {
	return fmt.Sprintf("%s%.2f", p.Currency.Symbol(), p.Value)
}

// WeakDate is a calendar date whose month and day may be unknown.
type WeakDate struct {
	Year  int  `json:"year"`
	Month *int `json:"month,omitempty"`
	Day   *int `json:"day,omitempty"`
}

// NewWeakDate builds a WeakDate; month and day may be nil.
func NewWeakDate(year int, month, day *int) WeakDate {
	return WeakDate{Year: year, Month: month, Day: day}
}

// Equal reports whether both dates carry the same year, month and day,
// treating two absent components as equal.
func (d WeakDate) Equal(other WeakDate) bool {
	return d.Year == other.Year && intPtrEqual(d.Month, other.Month) && intPtrEqual(d.Day, other.Day)
}

// String renders the date in the dotted DD.MM.YYYY, MM.YYYY or YYYY form.
func (d WeakDate) String() string {
	switch {
	case d.Month != nil && d.Day != nil:
		return fmt.Sprintf("%02d.%02d.%04d", *d.Day, *d.Month, d.Year)
	case d.Month != nil:
		return fmt.Sprintf("%02d.%04d", *d.Month, d.Year)
	default:
		return fmt.Sprintf("%04d", d.Year)
	}
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Whisky is a single listing extracted from a product page. Which optional
// fields are populated depends on the site profile that produced it.
type Whisky struct {
	Site       string    `json:"site"`
	URL        string    `json:"url"`
	Name       string    `json:"name"`
	Price      *Price    `json:"price,omitempty"`
	ReserveMet *bool     `json:"reserve_met,omitempty"`
	Distillery *string   `json:"distillery,omitempty"`
	Age        *int      `json:"age,omitempty"`
	Vintage    *WeakDate `json:"vintage,omitempty"`
	Bottled    *WeakDate `json:"bottled,omitempty"`
	Region     *string   `json:"region,omitempty"`
	Bottler    *string   `json:"bottler,omitempty"`
	CaskType   *string   `json:"cask_type,omitempty"`
	ABV        *float64  `json:"abv,omitempty"`
	BottleSize *string   `json:"bottle_size,omitempty"`
	CatalogID  *string   `json:"catalog_id,omitempty"`
	Score      *string   `json:"score,omitempty"`
	ScrapedAt  time.Time `json:"scraped_at"`
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	StartTime     time.Time
	EndTime       time.Time
	TotalCount    int
	ErrorCount    int
	FailedURLs    []string
	ErrorsByType  map[string]int
	SkippedByKind map[string]int
	VisitsByState map[string]int
	RetryCount    int
	RequestCount  int
	PageCount     int
}
