package pipeline

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-whisky/models"
)

// PrintWriter prints one line per record as it arrives.
type PrintWriter struct {
	out   io.Writer
	mu    sync.Mutex
	count int
}

// NewPrintWriter prints to out.
func NewPrintWriter(out io.Writer) *PrintWriter {
	return &PrintWriter{out: out}
}

// Write prints each record on its own line.
func (pw *PrintWriter) Write(records []*models.Whisky) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	for _, w := range records {
		if _, err := fmt.Fprintln(pw.out, FormatWhisky(w)); err != nil {
			return fmt.Errorf("print record: %w", err)
		}
		pw.count++
	}
	return nil
}

// Close is a no-op; the caller owns the underlying writer.
func (pw *PrintWriter) Close() error {
	return nil
}

// Validate ensures at least one record was printed.
func (pw *PrintWriter) Validate() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.count == 0 {
		return fmt.Errorf("no records printed")
	}
	return nil
}

// FormatWhisky renders the populated fields of w as key=value pairs.
func FormatWhisky(w *models.Whisky) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", w.Site, w.Name)

	field := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&b, " %s=%q", key, value)
		}
	}
	if w.Price != nil {
		field("price", w.Price.String())
	}
	field("reserve_met", optBool(w.ReserveMet))
	field("distillery", optString(w.Distillery))
	field("age", optInt(w.Age))
	field("vintage", optDate(w.Vintage))
	field("bottled", optDate(w.Bottled))
	field("region", optString(w.Region))
	field("bottler", optString(w.Bottler))
	field("cask_type", optString(w.CaskType))
	field("abv", optFloat(w.ABV))
	field("bottle_size", optString(w.BottleSize))
	field("catalog_id", optString(w.CatalogID))
	field("score", optString(w.Score))
	field("url", w.URL)
	return b.String()
}
