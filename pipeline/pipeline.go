// Package pipeline drives a source run: discovery, year filtering,
// sequential artifact fetching, storage and the run manifest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/config"
	"github.com/aluiziolira/go-scrape-pudl/discovery"
	"github.com/aluiziolira/go-scrape-pudl/models"
	"github.com/aluiziolira/go-scrape-pudl/registry"
	"github.com/aluiziolira/go-scrape-pudl/scraper"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner executes crawl requests against a registry of sources.
type Runner struct {
	cfg      *config.Config
	registry *registry.Registry
	client   scraper.Fetcher
	fetcher  *scraper.ArtifactFetcher
	metrics  *scraper.Metrics
	now      func() time.Time
}

// NewRunner wires a runner. metrics may be nil.
func NewRunner(cfg *config.Config, reg *registry.Registry, client scraper.Fetcher, metrics *scraper.Metrics) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if reg == nil || client == nil {
		return nil, fmt.Errorf("registry and client are required")
	}
	return &Runner{
		cfg:      cfg,
		registry: reg,
		client:   client,
		fetcher:  scraper.NewArtifactFetcher(client, metrics),
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// Check validates a request without touching the network.
func (r *Runner) Check(req models.CrawlRequest) (registry.Source, error) {
	source, err := r.registry.Lookup(req.Source)
	if err != nil {
		return registry.Source{}, err
	}
	if err := source.CheckYear(req.Year); err != nil {
		return registry.Source{}, err
	}
	return source, nil
}

// Run crawls one source. Per-artifact failures end up in the summary and
// the manifest; the returned error is reserved for configuration errors,
// filesystem failures and cancellation, in which case the summary (if
// any) reflects the work done so far.
func (r *Runner) Run(ctx context.Context, req models.CrawlRequest) (*models.RunSummary, error) {
	source, err := r.Check(req)
	if err != nil {
		return nil, err
	}

	now := r.now()
	runDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	summary := models.NewRunSummary(uuid.NewString(), source.Name, req.Year, runDate)
	summary.StartTime = now
	summary.Dir = RunDir(r.cfg.OutputRoot, source.Name, runDate)
	defer func() { summary.EndTime = r.now() }()

	logger := slog.With(
		slog.String("run_id", summary.RunID),
		slog.String("source", source.Name),
	)

	candidates, discoverErr := r.discover(ctx, source, req, summary, logger)

	writer, err := OpenManifest(r.cfg.ManifestFormat, summary.Dir, candidates)
	if err != nil {
		return summary, err
	}
	summary.ManifestPaths = writer.Paths()
	materializer, err := NewMaterializer(summary.Dir, summary.RunID, writer)
	if err != nil {
		writer.Close()
		return summary, err
	}

	runErr := discoverErr
	if runErr == nil {
		runErr = r.fetchAll(ctx, source, candidates, summary, materializer, logger)
	}

	if err := writer.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close manifest: %w", err)
	}
	if runErr == nil {
		if err := writer.Validate(); err != nil {
			runErr = fmt.Errorf("manifest validation: %w", err)
		}
	}

	logger.Info("run finished",
		slog.Int("candidates", summary.Candidates),
		slog.Int("succeeded", summary.Succeeded()),
		slog.Int("failures", summary.Failures()),
		slog.Int64("bytes", summary.Bytes()),
		slog.Bool("aborted", summary.Aborted),
	)
	return summary, runErr
}

// discover lists the candidates of req. The error is only ever the
// context's, when the run was canceled before anything could be fetched.
func (r *Runner) discover(ctx context.Context, source registry.Source, req models.CrawlRequest, summary *models.RunSummary, logger *slog.Logger) ([]models.Candidate, error) {
	logger.Info("discovering artifacts",
		slog.String("shape", string(source.Discoverer.Shape())),
		slog.String("request", req.String()),
	)

	result := source.Discoverer.Discover(ctx, r.client, source.DiscoveryRequest(req.Year, summary.RunDate, r.cfg.DedupeMaxSize))
	summary.DiscoveryFailures = result.Failures
	summary.Anomalies = result.Anomalies
	r.metrics.ObserveDiscovery(source.Name, len(result.Failures), len(result.Anomalies))

	candidates := discovery.FilterYear(result.Candidates, req.Year, source.Yearless())
	summary.Candidates = len(candidates)
	if len(candidates) == 0 {
		if err := ctx.Err(); err != nil {
			summary.Aborted = true
			return nil, err
		}
		summary.NoData = true
		logger.Warn("no data available", slog.String("request", req.String()))
	}
	return candidates, nil
}

func (r *Runner) fetchAll(ctx context.Context, source registry.Source, candidates []models.Candidate, summary *models.RunSummary, m *Materializer, logger *slog.Logger) error {
	rule := source.ContentRule()
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			summary.Aborted = true
			logger.Warn("run canceled",
				slog.Int("completed", i),
				slog.Int("remaining", len(candidates)-i),
			)
			return err
		}

		artifact := r.fetcher.FetchArtifact(ctx, c, rule)
		if ctx.Err() != nil && !artifact.Succeeded() {
			// Interrupted mid-fetch, not a portal failure.
			summary.Aborted = true
			return ctx.Err()
		}

		entry, err := m.Materialize(artifact)
		if err != nil {
			return err
		}
		summary.Record(entry)
		r.metrics.ObserveArtifact(source.Name, string(entry.Outcome), entry.Bytes)
	}
	return nil
}

// ErrDuplicateSource is returned by RunAll when a source is requested more
// than once. Runs of one source share a directory and manifest.
var ErrDuplicateSource = errors.New("source requested more than once")

// RunAll runs several requests, up to cfg.SourceConcurrency at a time.
// Every request is checked before any network activity. Summaries are
// returned in request order; a failed run leaves its slot as returned by
// Run and contributes to the joined error.
func (r *Runner) RunAll(ctx context.Context, reqs []models.CrawlRequest) ([]*models.RunSummary, error) {
	seen := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		source, err := r.Check(req)
		if err != nil {
			return nil, err
		}
		if seen[source.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, source.Name)
		}
		seen[source.Name] = true
	}

	summaries := make([]*models.RunSummary, len(reqs))
	errs := make([]error, len(reqs))

	var g errgroup.Group
	g.SetLimit(r.cfg.SourceConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			summaries[i], errs[i] = r.Run(ctx, req)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("%s: %w", req, errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return summaries, errors.Join(errs...)
}
