package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/config"
	"github.com/aluiziolira/go-scrape-pudl/models"
	"github.com/aluiziolira/go-scrape-pudl/pipeline"
	"github.com/aluiziolira/go-scrape-pudl/registry"
	"github.com/aluiziolira/go-scrape-pudl/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "pudl-scrape",
		Short:         "pudl-scrape downloads raw energy regulatory datasets from government portals.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&cfg.OutputRoot, "output", "o", cfg.OutputRoot, "Root directory for downloaded artifacts")
	flags.StringVar(&cfg.ManifestFormat, "format", cfg.ManifestFormat, "Manifest format: json, csv, or dual")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	flags.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Pause after every request to the same portal")
	flags.DurationVar(&cfg.RandomDelay, "random-delay", cfg.RandomDelay, "Extra random pause added to --delay")
	flags.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Honour robots.txt on every portal")
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Retries for transient fetch failures")
	flags.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Initial retry backoff")
	flags.DurationVar(&cfg.RetryBackoffMax, "retry-backoff-max", cfg.RetryBackoffMax, "Maximum retry backoff")
	flags.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header sent to portals")
	flags.IntVar(&cfg.SourceConcurrency, "concurrency", cfg.SourceConcurrency, "Sources crawled at the same time")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file (default <output>/pudl-scrape.log)")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable debug logging")

	root.AddCommand(newRunCmd(cfg), newSourcesCmd())
	return root
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "run <source> [source...]",
		Short: "Discovers and downloads every artifact of the given sources.",
		Long: "Discovers and downloads every artifact of the given sources into\n" +
			"<output>/<source>/<YYYY-MM-DD>/, with one manifest per source and date.\n" +
			"Without --year every published year is fetched.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.ManifestFormat = strings.ToLower(cfg.ManifestFormat)

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, level, closer, err := newLogger(cfg.Verbose, cfg.LogPath())
			if err != nil {
				return err
			}
			defer closer.Close()
			slog.SetDefault(logger)
			slog.SetLogLoggerLevel(level.Level())

			reqs := make([]models.CrawlRequest, 0, len(args))
			for _, name := range args {
				reqs = append(reqs, models.CrawlRequest{Source: strings.ToLower(name), Year: year})
			}
			return runSources(cmd.Context(), cfg, reqs)
		},
	}
	cmd.Flags().IntVarP(&year, "year", "y", models.NoYear, "Only fetch this year (default: all years)")
	return cmd
}

func runSources(ctx context.Context, cfg *config.Config, reqs []models.CrawlRequest) error {
	metrics := scraper.NewMetrics()
	client, err := scraper.NewClient(cfg, metrics)
	if err != nil {
		return fmt.Errorf("initialising client: %w", err)
	}
	runner, err := pipeline.NewRunner(cfg, registry.Default(), client, metrics)
	if err != nil {
		return fmt.Errorf("initialising runner: %w", err)
	}

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	slog.Info("starting scrape",
		slog.Int("sources", len(reqs)),
		slog.String("output", cfg.OutputRoot),
		slog.Int("concurrency", cfg.SourceConcurrency),
	)

	startTime := time.Now()
	summaries, runErr := runner.RunAll(ctx, reqs)
	if len(summaries) > 0 {
		printSummary(summaries, time.Since(startTime))
	}
	if runErr != nil {
		return runErr
	}

	failures := 0
	for _, s := range summaries {
		if s != nil {
			failures += s.Failures()
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d artifact(s) or listing(s) failed, see the manifest for details", failures)
	}
	return nil
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Lists the supported sources.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printSources(registry.Default().Sources())
		},
	}
}
