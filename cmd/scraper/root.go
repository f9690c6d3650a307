package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-whisky/config"
	"github.com/aluiziolira/go-scrape-whisky/profile"
)

var (
	verbose      bool
	profilesFile string
)

var rootCmd = &cobra.Command{
	Use:           "scraper",
	Short:         "scraper crawls whisky auction and catalogue sitemaps into structured records.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("profiles") {
			if value, ok := config.EnvString("SCRAPER_PROFILES"); ok {
				profilesFile = value
			}
		}

		logger, level := newLogger(os.Stderr, verbose)
		slog.SetDefault(logger)
		slog.SetLogLoggerLevel(level.Level())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&profilesFile, "profiles", "", "YAML file with extra or overriding site profiles")
}

func execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// loadRegistry returns the builtin profiles, overridden by filename when set.
func loadRegistry(filename string) (*profile.Registry, error) {
	reg, err := profile.Builtin()
	if err != nil {
		return nil, err
	}
	if filename != "" {
		if err := profile.LoadFile(reg, filename); err != nil {
			return nil, err
		}
		slog.Debug("loaded profiles file", slog.String("path", filename))
	}
	return reg, nil
}

func resolveProfiles(reg *profile.Registry, names []string) ([]*profile.Profile, error) {
	profiles := make([]*profile.Profile, 0, len(names))
	for _, name := range names {
		p, err := reg.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("%w (known sites: %v)", err, reg.Names())
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func newLogger(out *os.File, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(out) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
