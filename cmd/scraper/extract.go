package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-whisky/crawl"
	"github.com/aluiziolira/go-scrape-whisky/pipeline"
)

var (
	extractSite string
	extractURL  string
	extractJSON bool
)

// errPageSkipped marks an extract run where the page lacked a mandatory field.
var errPageSkipped = errors.New("page skipped")

var extractCmd = &cobra.Command{
	Use:   "extract --site <name> <page.html>",
	Short: "Runs a site profile against a saved product page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd.OutOrStdout(), extractSite, args[0], extractURL, extractJSON)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractSite, "site", "", "Site profile to apply")
	extractCmd.Flags().StringVar(&extractURL, "url", "", "URL recorded on the record (defaults to a file:// URL)")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print the record as JSON")
	_ = extractCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(out io.Writer, site, filename, pageURL string, asJSON bool) error {
	reg, err := loadRegistry(profilesFile)
	if err != nil {
		return err
	}
	p, err := reg.Resolve(site)
	if err != nil {
		return err
	}

	body, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}
	if pageURL == "" {
		abs, err := filepath.Abs(filename)
		if err != nil {
			return fmt.Errorf("resolve page path: %w", err)
		}
		pageURL = "file://" + filepath.ToSlash(abs)
	}

	outcome, err := crawl.NewMachine(p).Handle(crawl.PageDetail, pageURL, body)
	if err != nil {
		return err
	}
	if outcome.Skip != nil {
		return fmt.Errorf("%w: %v", errPageSkipped, outcome.Skip)
	}

	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(outcome.Record)
	}
	_, err = fmt.Fprintln(out, pipeline.FormatWhisky(outcome.Record))
	return err
}
