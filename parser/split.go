package parser

import (
	"regexp"
	"strings"
)

var (
	numericRun = regexp.MustCompile(`[0-9]+[,0-9]*\.?[0-9]*`)
	wordRun    = regexp.MustCompile(`[£₩$€¥A-Za-z ]+`)
)

// Split separates s into its numeric runs ("21,500", "66.3") and its runs of
// letters, spaces and currency symbols. Word runs are trimmed and empty runs
// are dropped. Both slices keep source order.
func Split(s string) (nums, strs []string) {
	nums = numericRun.FindAllString(s, -1)
	for _, run := range wordRun.FindAllString(s, -1) {
		run = strings.TrimSpace(run)
		if run == "" {
			continue
		}
		strs = append(strs, run)
	}
	return nums, strs
}

// FirstNumber returns the first numeric run in s.
func FirstNumber(s string) (string, bool) {
	nums, _ := Split(s)
	if len(nums) == 0 {
		return "", false
	}
	return nums[0], true
}
