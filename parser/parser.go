// Package parser turns noisy listing text into typed values: prices,
// partial dates, percentages and labelled columns.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-scrape-whisky/models"
)

var whitespace = regexp.MustCompile(`[\t\r\n\s]+`)

// ValidateWhisky ensures the scraper captured the fields every site provides.
func ValidateWhisky(w *models.Whisky) error {
	if w == nil {
		return fmt.Errorf("whisky is nil")
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("whisky missing name")
	}
	if strings.TrimSpace(w.URL) == "" {
		return fmt.Errorf("whisky missing url for %s", w.Name)
	}
	if w.Price != nil && w.Price.Value < 0 {
		return fmt.Errorf("whisky has negative price for %s", w.Name)
	}
	return nil
}

// CollapseSpace folds every whitespace run into a single space and trims
// the result.
func CollapseSpace(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
