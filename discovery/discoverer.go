// Package discovery turns a source's listing pages into artifact candidates
// and narrows them to the requested year.
package discovery

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-pudl/models"
	"github.com/aluiziolira/go-scrape-pudl/parser"
	"github.com/aluiziolira/go-scrape-pudl/scraper"
)

// Shape names the addressing scheme a source publishes under.
type Shape string

const (
	ShapeYearIndexed   Shape = "year-indexed-page"
	ShapeSingleListing Shape = "single-listing-page"
	ShapeStaticBundle  Shape = "static-bundle"
	ShapeYearTemplate  Shape = "year-template"
)

// Request carries everything a discoverer needs for one run.
type Request struct {
	Source string
	// Years lists the years to discover in ascending order. A year in this
	// list that yields no links is reported as an anomaly.
	Years []int
	// MinYear and MaxYear bound the years accepted from listings that
	// enumerate every year; MaxYear 0 means unbounded.
	MinYear int
	MaxYear int
	// Kind is the expected artifact kind; empty derives it from the URL.
	Kind models.Kind
	// BundleName is the stored file name of a static bundle.
	BundleName string
	// DedupeMaxSize caps the identity set used to drop duplicate links.
	DedupeMaxSize int
}

// Result is the outcome of discovery. Failures and anomalies are values,
// never errors: a broken year does not stop the others.
type Result struct {
	Candidates []models.Candidate
	Failures   []models.DiscoveryFailure
	Anomalies  []int
}

// Discoverer enumerates the artifacts a source offers.
type Discoverer interface {
	Shape() Shape
	Discover(ctx context.Context, fetcher scraper.Fetcher, req Request) Result
}

// ExpandYear substitutes {year} and {yy} placeholders in template.
func ExpandYear(template string, year int) string {
	full := strconv.Itoa(year)
	short := full
	if len(full) == 4 {
		short = full[2:]
	}
	return strings.NewReplacer("{year}", full, "{yy}", short).Replace(template)
}

type builder struct {
	req    Request
	dedupe *Deduper
	result Result
}

func newBuilder(req Request) *builder {
	return &builder{
		req:    req,
		dedupe: NewDeduper(req.DedupeMaxSize),
	}
}

func (b *builder) add(rawURL string, year int) {
	kind := b.req.Kind
	if kind == "" {
		kind = parser.KindFromURL(rawURL)
	}
	candidate := models.Candidate{
		Source: b.req.Source,
		Year:   year,
		URL:    rawURL,
		Kind:   kind,
	}
	if year == models.NoYear {
		candidate.Name = b.req.BundleName
	}
	if !b.dedupe.Add(candidate) {
		slog.Debug("duplicate candidate dropped",
			slog.String("source", b.req.Source),
			slog.Int("year", year),
			slog.String("url", rawURL),
		)
		return
	}
	b.result.Candidates = append(b.result.Candidates, candidate)
}

func (b *builder) fail(year int, pageURL string, err error) {
	slog.Error("listing unavailable",
		slog.String("source", b.req.Source),
		slog.Int("year", year),
		slog.String("url", pageURL),
		slog.Any("error", err),
	)
	b.result.Failures = append(b.result.Failures, models.DiscoveryFailure{
		Year:   year,
		URL:    pageURL,
		Reason: err.Error(),
	})
}

func (b *builder) anomaly(year int, pageURL string) {
	slog.Warn("discovery anomaly: no links for a supported year, upstream layout may have changed",
		slog.String("source", b.req.Source),
		slog.Int("year", year),
		slog.String("url", pageURL),
	)
	b.result.Anomalies = append(b.result.Anomalies, year)
}

func (b *builder) inRange(year int) bool {
	if year < b.req.MinYear {
		return false
	}
	return b.req.MaxYear == 0 || year <= b.req.MaxYear
}
