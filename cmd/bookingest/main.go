package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-ingest-books/config"
)

var (
	cfg        *config.Config
	configPath string
)

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"base-url":          "base_url",
	"start-page":        "start_page",
	"pages":             "pages",
	"parallel":          "parallelism",
	"delay":             "delay",
	"random-delay":      "random_delay",
	"timeout":           "timeout",
	"rps":               "requests_per_second",
	"max-retries":       "max_retries",
	"retry-backoff":     "retry_backoff",
	"retry-backoff-max": "retry_backoff_max",
	"cache-size":        "cache_size",
	"output":            "output_file",
	"format":            "output_format",
	"respect-robots":    "respect_robots_txt",
	"metrics-addr":      "metrics_addr",
	"verbose":           "verbose",
	"store-driver":      "store.driver",
	"store-dsn":         "store.dsn",
}

var rootCmd = &cobra.Command{
	Use:           "bookingest",
	Short:         "Crawl the book catalog and store it page by page",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := config.NewViper(configPath)
		for name, key := range flagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}

		c, err := config.Load(v)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = c

		logger, level := newLogger(cfg.Verbose)
		slog.SetDefault(logger)
		slog.SetLogLoggerLevel(level.Level())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./bookingest.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().String("store-driver", "", "store backend: sqlite or postgres")
	rootCmd.PersistentFlags().String("store-dsn", "", "store connection string or SQLite path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
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
