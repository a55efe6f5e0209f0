package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-ingest-books/config"
	"github.com/aluiziolira/go-ingest-books/export"
	"github.com/aluiziolira/go-ingest-books/ingest"
	"github.com/aluiziolira/go-ingest-books/scraper"
	"github.com/aluiziolira/go-ingest-books/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest a range of listing pages",
	Long: "Crawls --pages listing pages starting at --start-page and saves each page's books in one batch. " +
		"The run stops at the first empty page. After a failure, rerun from the page that failed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		runDone := make(chan struct{})
		finishRun := sync.OnceFunc(func() { close(runDone) })
		defer finishRun()
		go watchShutdown(ctx, runDone, slog.Default())

		metrics := scraper.NewMetrics()
		if cfg.MetricsAddr != "" {
			srv := serveMetrics(cfg.MetricsAddr, metrics)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Error("metrics server shutdown failed", slog.Any("error", err))
				}
			}()
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		fetcher, err := scraper.NewCollyFetcher(cfg, metrics)
		if err != nil {
			return eris.Wrap(err, "initialise fetcher")
		}
		var source scraper.Fetcher = fetcher
		if cfg.CacheSize > 0 {
			cached, err := scraper.NewCachingFetcher(fetcher, cfg.CacheSize, metrics)
			if err != nil {
				return err
			}
			source = cached
		}

		crawler, err := scraper.NewCrawler(cfg, source,
			scraper.WithMetrics(metrics),
			scraper.WithLogger(slog.Default()),
		)
		if err != nil {
			return eris.Wrap(err, "initialise crawler")
		}

		observers := ingest.Observers{
			ingest.NewLogObserver(slog.Default()),
			ingest.MetricsObserver{Metrics: metrics},
		}

		var exporter *ingest.ExportObserver
		var writer export.Writer
		if cfg.OutputFormat != "none" {
			writer, err = export.NewWriter(cfg.OutputFormat, cfg.OutputFile)
			if err != nil {
				return eris.Wrap(err, "create export writer")
			}
			exporter = ingest.NewExportObserver(writer, slog.Default())
			observers = append(observers, exporter)
		}

		orchestrator := ingest.New(crawler, st, ingest.WithObserver(observers))
		result, runErr := orchestrator.Run(ctx, cfg.StartPage, cfg.PageCount)
		finishRun()

		if writer != nil {
			if err := writer.Close(); err != nil {
				slog.Error("close export writer", slog.Any("error", err))
			}
		}

		printSummary(os.Stdout, result, fetcher.Stats(), cfg.OutputFile)

		if runErr != nil {
			if result != nil {
				slog.Info("resume with",
					slog.Int("start_page", result.StartPage+result.PagesCrawled),
				)
			}
			return runErr
		}
		if exporter != nil {
			if err := exporter.Err(); err != nil {
				return eris.Wrap(err, "export")
			}
			if result.BooksSaved > 0 {
				if err := writer.Validate(); err != nil {
					return eris.Wrap(err, "output validation")
				}
			}
		}
		return nil
	},
}

func init() {
	d := config.DefaultConfig()
	f := runCmd.Flags()
	f.String("base-url", d.BaseURL, "catalog base URL")
	f.Int("start-page", d.StartPage, "first listing page to ingest (1-based)")
	f.Int("pages", d.PageCount, "number of listing pages to ingest")
	f.Int("parallel", d.Parallelism, "maximum concurrent requests")
	f.Duration("delay", d.Delay, "delay between requests")
	f.Duration("random-delay", d.RandomDelay, "random jitter added to delay")
	f.Duration("timeout", d.Timeout, "per-request timeout")
	f.Float64("rps", d.RequestsPerSecond, "request rate limit per second (0 disables)")
	f.Int("max-retries", d.MaxRetries, "retries for transient fetch errors (0 disables)")
	f.Duration("retry-backoff", d.RetryBackoff, "initial retry backoff")
	f.Duration("retry-backoff-max", d.RetryBackoffMax, "maximum retry backoff")
	f.Int("cache-size", d.CacheSize, "documents kept in the in-memory cache (0 disables)")
	f.String("output", d.OutputFile, "export file path")
	f.String("format", d.OutputFormat, "export format: none, csv, json, or dual")
	f.Bool("respect-robots", d.RespectRobotsTxt, "respect robots.txt directives")
	f.String("metrics-addr", d.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	rootCmd.AddCommand(runCmd)
}

func serveMetrics(addr string, metrics *scraper.Metrics) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return srv
}

// watchShutdown logs once if ctx is cancelled while the run is still going.
func watchShutdown(ctx context.Context, done <-chan struct{}, logger *slog.Logger) {
	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
			return
		default:
		}
		logger.Info("shutdown signal received, finishing the current page",
			slog.Any("cause", context.Cause(ctx)),
		)
	}
}
