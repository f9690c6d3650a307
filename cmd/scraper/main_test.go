package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-whisky/config"
	"github.com/aluiziolira/go-scrape-whisky/models"
	"github.com/aluiziolira/go-scrape-whisky/pipeline"
	"github.com/aluiziolira/go-scrape-whisky/profile"
)

func TestApplyEnv(t *testing.T) {
	t.Setenv("SCRAPER_SITES", "whiskybase, whiskyauction")
	t.Setenv("SCRAPER_PAGES", "25")
	t.Setenv("SCRAPER_PARALLEL", "8")
	t.Setenv("SCRAPER_TIMEOUT", "5s")
	t.Setenv("SCRAPER_OUTPUT", "out/lots.csv")
	t.Setenv("SCRAPER_METRICS_ADDR", ":9090")

	cmd := &cobra.Command{}
	cmd.Flags().Int("pages", 0, "")
	if err := cmd.Flags().Set("pages", "7"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	cfg := config.DefaultConfig()
	if err := applyEnv(cmd, cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}

	if diff := cmp.Diff([]string{"whiskybase", "whiskyauction"}, cfg.Sites); diff != "" {
		t.Fatalf("sites mismatch (-want +got):\n%s", diff)
	}
	if cfg.MaxPages != config.DefaultConfig().MaxPages {
		t.Fatalf("pages = %d, explicit flag should win over env", cfg.MaxPages)
	}
	if cfg.Parallelism != 8 {
		t.Fatalf("parallelism = %d, want 8", cfg.Parallelism)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.OutputFile != "out/lots.csv" || cfg.MetricsAddr != ":9090" {
		t.Fatalf("output/metrics = %q/%q", cfg.OutputFile, cfg.MetricsAddr)
	}
}

func TestApplyEnvRejectsInvalidNumbers(t *testing.T) {
	t.Setenv("SCRAPER_PARALLEL", "many")
	if err := applyEnv(&cobra.Command{}, config.DefaultConfig()); err == nil {
		t.Fatalf("expected error for invalid SCRAPER_PARALLEL")
	}
}

func TestCreateWriter(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer

	tests := []struct {
		format  string
		wantErr bool
	}{
		{format: "stdout"},
		{format: "csv"},
		{format: "json"},
		{format: "dual"},
		{format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			writer, err := createWriter(tt.format, filepath.Join(dir, tt.format, "whiskies.csv"), &stdout)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for format %s", tt.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("create writer: %v", err)
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "dual", "whiskies.jsonl")); err != nil {
		t.Fatalf("dual writer should create a jsonl file: %v", err)
	}
	if _, ok := mustWriter(t, "stdout", &stdout).(*pipeline.PrintWriter); !ok {
		t.Fatalf("stdout format should print records")
	}
}

func mustWriter(t *testing.T, format string, stdout *bytes.Buffer) pipeline.OutputWriter {
	t.Helper()
	writer, err := createWriter(format, "", stdout)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	return writer
}

func TestRunExtract(t *testing.T) {
	var out bytes.Buffer
	page := filepath.Join("..", "..", "profile", "testdata", "whiskybase_entry.html")
	if err := runExtract(&out, "whiskybase", page, "https://www.whiskybase.com/whiskies/whisky/1234", true); err != nil {
		t.Fatalf("extract: %v", err)
	}

	var got models.Whisky
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.Name != "Ardbeg 10-year-old" {
		t.Fatalf("name = %q", got.Name)
	}
	if got.CatalogID == nil || *got.CatalogID != "WB1234" {
		t.Fatalf("catalog id = %v, want WB1234", got.CatalogID)
	}
}

func TestRunExtractSkippedPage(t *testing.T) {
	page := filepath.Join(t.TempDir(), "empty.html")
	if err := os.WriteFile(page, []byte("<html><body><h1>Nothing here</h1></body></html>"), 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}

	var out bytes.Buffer
	err := runExtract(&out, "whiskybase", page, "", false)
	if !errors.Is(err, errPageSkipped) {
		t.Fatalf("extract = %v, want errPageSkipped", err)
	}
	if out.Len() != 0 {
		t.Fatalf("skipped page printed %q", out.String())
	}
}

func TestRenderSites(t *testing.T) {
	reg, err := profile.Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}

	var out bytes.Buffer
	if err := renderSites(&out, reg); err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"whiskyauction", "whiskyauctioneer", "whiskybase", "block:detail", "catalog_id"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("sites table missing %q:\n%s", want, out.String())
		}
	}
}

func TestPrintSummaryListsCrawledSites(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	result := &models.ScraperResult{
		TotalCount:    3,
		RequestCount:  4,
		ErrorCount:    1,
		StartTime:     start,
		EndTime:       start.Add(2 * time.Second),
		SkippedByKind: map[string]int{"missing_field": 2},
	}
	cfg := config.DefaultConfig()
	cfg.Sites = []string{"ignored"}
	cfg.OutputFormat = "csv"
	cfg.OutputFile = "lots.csv"

	var buf bytes.Buffer
	printSummary(&buf, result, cfg, []string{"whiskybase", "whiskyauction"}, nil)
	out := buf.String()
	for _, want := range []string{"whiskybase, whiskyauction", "75.00%", "missing_field: 2", "lots.csv"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ignored") {
		t.Errorf("summary should list crawled sites, not configured ones:\n%s", out)
	}
}

func TestResolveProfilesUnknownSite(t *testing.T) {
	reg, err := profile.Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	if _, err := resolveProfiles(reg, []string{"whiskybase", "nosuchsite"}); err == nil {
		t.Fatalf("expected error for unknown site")
	}
}
