package parser

import (
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-whisky/models"
)

// ParsePrice reads the first number and the first currency symbol found
// anywhere in s. Both must be present.
func ParsePrice(s string) (models.Price, bool) {
	nums, strs := Split(s)
	if len(nums) == 0 {
		return models.Price{}, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(nums[0], ",", ""), 64)
	if err != nil {
		return models.Price{}, false
	}

	for _, run := range strs {
		for _, r := range run {
			if currency, ok := models.CurrencyFromSymbol(r); ok {
				return models.Price{Value: value, Currency: currency}, true
			}
		}
	}
	return models.Price{}, false
}

// ParseWeakDate accepts DD.MM.YYYY, MM.YYYY or YYYY. An unreadable year
// rejects the date; an unreadable month or day only drops that component.
func ParseWeakDate(s string) (models.WeakDate, bool) {
	parts := strings.Split(strings.TrimSpace(s), ".")

	var dayText, monthText, yearText string
	switch len(parts) {
	case 3:
		dayText, monthText, yearText = parts[0], parts[1], parts[2]
	case 2:
		monthText, yearText = parts[0], parts[1]
	case 1:
		yearText = parts[0]
	default:
		return models.WeakDate{}, false
	}

	year, ok := parseYear(yearText)
	if !ok {
		return models.WeakDate{}, false
	}
	date := models.WeakDate{Year: year}
	if monthText != "" {
		date.Month = parseBounded(monthText, 1, 12)
	}
	if dayText != "" {
		date.Day = parseBounded(dayText, 1, 31)
	}
	return date, true
}

// WeakDateFromYear builds a year-only date for sources that never carry a
// month or day.
func WeakDateFromYear(s string) (models.WeakDate, bool) {
	year, ok := parseYear(s)
	if !ok {
		return models.WeakDate{}, false
	}
	return models.WeakDate{Year: year}, true
}

// ParseABV returns the first number in s. Units are not checked.
func ParseABV(s string) (float64, bool) {
	num, ok := FirstNumber(s)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ParseInt returns the first number in s as a whole number, so
// "30 YEAR OLD" yields 30. Fractional numbers are rejected.
func ParseInt(s string) (int, bool) {
	num, ok := FirstNumber(s)
	if !ok {
		return 0, false
	}
	value, err := strconv.Atoi(strings.ReplaceAll(num, ",", ""))
	if err != nil {
		return 0, false
	}
	return value, true
}

func parseYear(s string) (int, bool) {
	year, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, false
	}
	return int(year), true
}

func parseBounded(s string, lo, hi int) *int {
	value, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return nil
	}
	v := int(value)
	if v < lo || v > hi {
		return nil
	}
	return &v
}
