package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/models"
	"github.com/aluiziolira/go-scrape-pudl/parser"
)

// Fetcher is the subset of Client used by the artifact fetcher and the
// link discoverers.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// ArtifactFetcher retrieves candidate bodies and post-validates them.
// Failures never surface as errors: they are folded into the returned
// artifact so the run can move on to the next candidate.
type ArtifactFetcher struct {
	client  Fetcher
	metrics *Metrics
	now     func() time.Time
}

// NewArtifactFetcher wraps client.
func NewArtifactFetcher(client Fetcher, metrics *Metrics) *ArtifactFetcher {
	return &ArtifactFetcher{
		client:  client,
		metrics: metrics,
		now:     time.Now,
	}
}

// FetchArtifact downloads candidate and checks it against rule. When rule
// carries no kind, the candidate's expected kind is used.
func (f *ArtifactFetcher) FetchArtifact(ctx context.Context, candidate models.Candidate, rule parser.ContentRule) *models.FetchedArtifact {
	artifact := &models.FetchedArtifact{Candidate: candidate}

	resp, err := f.client.Fetch(ctx, candidate.URL)
	artifact.FetchedAt = f.now()
	if err != nil {
		artifact.Outcome = models.OutcomeFailure
		artifact.Reason = ErrorLabel(err)
		artifact.Detail = err.Error()
		var failure *FetchFailure
		if errors.As(err, &failure) {
			artifact.Attempts = failure.Attempts
		}
		slog.Error("artifact fetch failed",
			slog.String("source", candidate.Source),
			slog.Int("year", candidate.Year),
			slog.String("url", candidate.URL),
			slog.String("category", artifact.Reason),
			slog.Any("error", err),
		)
		return artifact
	}
	artifact.Attempts = resp.Attempts

	if rule.Kind == "" {
		rule.Kind = candidate.Kind
	}
	if err := parser.ValidateContent(resp.Body, rule); err != nil {
		artifact.Outcome = models.OutcomeFailure
		artifact.Reason = parser.ErrContentMismatch.Error()
		artifact.Detail = err.Error()
		f.metrics.IncError(artifact.Reason)
		slog.Error("artifact rejected",
			slog.String("source", candidate.Source),
			slog.Int("year", candidate.Year),
			slog.String("url", candidate.URL),
			slog.Int("bytes", len(resp.Body)),
			slog.Any("error", err),
		)
		return artifact
	}

	artifact.Body = resp.Body
	artifact.Size = int64(len(resp.Body))
	artifact.Outcome = models.OutcomeSuccess
	return artifact
}
