package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-whisky/config"
	"github.com/aluiziolira/go-scrape-whisky/models"
	"github.com/aluiziolira/go-scrape-whisky/pipeline"
	"github.com/aluiziolira/go-scrape-whisky/scraper"
)

var crawlCfg = config.DefaultConfig()

var crawlCmd = &cobra.Command{
	Use:   "crawl [--sites a,b] [--format stdout|csv|json|dual]",
	Short: "Crawls the sitemaps of the selected sites and writes every product found.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyEnv(cmd, crawlCfg); err != nil {
			return err
		}
		crawlCfg.OutputFormat = strings.ToLower(crawlCfg.OutputFormat)
		crawlCfg.ProfilesFile = profilesFile
		crawlCfg.Verbose = verbose
		if err := crawlCfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return runCrawl(cmd.Context(), crawlCfg, cmd.OutOrStdout())
	},
}

func init() {
	defaults := config.DefaultConfig()
	flags := crawlCmd.Flags()
	flags.StringSliceVar(&crawlCfg.Sites, "sites", defaults.Sites, "Sites to crawl")
	flags.IntVar(&crawlCfg.MaxPages, "pages", defaults.MaxPages, "Maximum product pages to fetch per run")
	flags.IntVar(&crawlCfg.Parallelism, "parallel", defaults.Parallelism, "Concurrent requests per site")
	flags.DurationVar(&crawlCfg.Timeout, "timeout", defaults.Timeout, "Request timeout")
	flags.IntVar(&crawlCfg.MaxRetries, "max-retries", defaults.MaxRetries, "Maximum retry attempts per URL")
	flags.DurationVar(&crawlCfg.RetryBackoff, "retry-backoff", defaults.RetryBackoff, "Initial retry backoff")
	flags.DurationVar(&crawlCfg.RetryBackoffMax, "retry-backoff-max", defaults.RetryBackoffMax, "Maximum retry backoff")
	flags.BoolVar(&crawlCfg.RespectRobotsTxt, "respect-robots", defaults.RespectRobotsTxt, "Respect robots.txt directives")
	flags.StringVar(&crawlCfg.UserAgent, "user-agent", defaults.UserAgent, "User-Agent header")
	flags.StringVar(&crawlCfg.OutputFile, "output", defaults.OutputFile, "Output file path for csv, json and dual formats")
	flags.StringVar(&crawlCfg.OutputFormat, "format", defaults.OutputFormat, "Output format: stdout, csv, json, or dual")
	flags.IntVar(&crawlCfg.BatchSize, "batch-size", defaults.BatchSize, "Records per output write")
	flags.StringVar(&crawlCfg.MetricsAddr, "metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")

	rootCmd.AddCommand(crawlCmd)
}

// applyEnv fills settings from SCRAPER_* variables unless the matching flag
// was given explicitly.
func applyEnv(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if !flags.Changed("sites") {
		if sites, ok := config.EnvList("SCRAPER_SITES"); ok {
			cfg.Sites = sites
		}
	}
	if !flags.Changed("pages") {
		if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
			return fmt.Errorf("invalid SCRAPER_PAGES: %w", err)
		} else if ok {
			cfg.MaxPages = value
		}
	}
	if !flags.Changed("parallel") {
		if value, ok, err := config.EnvInt("SCRAPER_PARALLEL"); err != nil {
			return fmt.Errorf("invalid SCRAPER_PARALLEL: %w", err)
		} else if ok {
			cfg.Parallelism = value
		}
	}
	if !flags.Changed("timeout") {
		if value, ok, err := config.EnvDuration("SCRAPER_TIMEOUT"); err != nil {
			return fmt.Errorf("invalid SCRAPER_TIMEOUT: %w", err)
		} else if ok {
			cfg.Timeout = value
		}
	}
	if !flags.Changed("output") {
		if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
			cfg.OutputFile = value
		}
	}
	if !flags.Changed("metrics-addr") {
		if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
			cfg.MetricsAddr = value
		}
	}
	return nil
}

func runCrawl(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	reg, err := loadRegistry(cfg.ProfilesFile)
	if err != nil {
		return err
	}
	profiles, err := resolveProfiles(reg, cfg.Sites)
	if err != nil {
		return err
	}

	slog.Info("starting crawl",
		slog.Any("sites", cfg.Sites),
		slog.Int("pages", cfg.MaxPages),
		slog.Int("workers", cfg.Parallelism),
		slog.String("format", cfg.OutputFormat),
	)

	s, err := scraper.NewScraper(cfg, profiles)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile, stdout)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result, err := s.Run(ctx, p)
	if err != nil {
		p.Close()
		return fmt.Errorf("crawl failed: %w", err)
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown failed: %w", err)
	}
	if err := writer.Validate(); err != nil {
		slog.Warn("output validation failed", slog.Any("error", err))
	}

	printSummary(os.Stderr, result, cfg, s.Sites(), p.GetMetrics())
	return nil
}

func createWriter(format, filename string, stdout io.Writer) (pipeline.OutputWriter, error) {
	switch format {
	case "stdout":
		return pipeline.NewPrintWriter(stdout), nil
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(out io.Writer, result *models.ScraperResult, cfg *config.Config, sites []string, metrics map[string]interface{}) {
	duration := result.EndTime.Sub(result.StartTime)
	recordsPerSec := 0.0
	if duration.Seconds() > 0 {
		recordsPerSec = float64(result.TotalCount) / duration.Seconds()
	}
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}

	t := newTable(out)
	t.SetTitle("Crawl complete")
	t.AppendRows([]table.Row{
		{"Sites", strings.Join(sites, ", ")},
		{"Records", result.TotalCount},
		{"Requests", result.RequestCount},
		{"Product pages", result.PageCount},
		{"Success rate", fmt.Sprintf("%.2f%%", successRate)},
		{"Errors", result.ErrorCount},
		{"Retries", result.RetryCount},
		{"Failed URLs", len(result.FailedURLs)},
	})
	appendCounts(t, "Visits", result.VisitsByState)
	appendCounts(t, "Skipped", result.SkippedByKind)
	appendCounts(t, "Error types", result.ErrorsByType)
	if validation, ok := metrics["validation_errors"].(map[string]int); ok {
		appendCounts(t, "Dropped", validation)
	}
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Duration", duration.Round(time.Millisecond)},
		{"Records/sec", fmt.Sprintf("%.2f", recordsPerSec)},
	})
	if cfg.OutputFormat != "stdout" {
		t.AppendRow(table.Row{"Output file", cfg.OutputFile})
	}
	t.Render()
}

func appendCounts(t table.Writer, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.AppendRow(table.Row{label, fmt.Sprintf("%s: %d", k, counts[k])})
	}
}
