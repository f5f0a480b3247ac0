package discovery

import (
	"context"
	"sort"

	"github.com/aluiziolira/go-scrape-pudl/models"
	"github.com/aluiziolira/go-scrape-pudl/parser"
	"github.com/aluiziolira/go-scrape-pudl/scraper"
)

const defaultMaxPages = 20

// YearIndexed fetches one listing page per year.
type YearIndexed struct {
	// PageURL contains a {year} placeholder.
	PageURL string
	Rule    parser.LinkRule
}

func (d YearIndexed) Shape() Shape { return ShapeYearIndexed }

func (d YearIndexed) Discover(ctx context.Context, fetcher scraper.Fetcher, req Request) Result {
	b := newBuilder(req)
	for _, year := range req.Years {
		if ctx.Err() != nil {
			break
		}
		pageURL := ExpandYear(d.PageURL, year)
		resp, err := fetcher.Fetch(ctx, pageURL)
		if err != nil {
			b.fail(year, pageURL, err)
			continue
		}
		links, err := parser.ExtractLinks(resp.Body, resp.URL, d.Rule)
		if err != nil {
			b.fail(year, pageURL, err)
			continue
		}
		if len(links) == 0 {
			b.anomaly(year, pageURL)
			continue
		}
		for _, link := range links {
			b.add(link.URL, year)
		}
	}
	return b.result
}

// SingleListing fetches one listing (following pagination when
// NextSelector is set) and groups its links by their embedded year token.
type SingleListing struct {
	PageURL      string
	Rule         parser.LinkRule
	NextSelector string
	MaxPages     int
}

func (d SingleListing) Shape() Shape { return ShapeSingleListing }

func (d SingleListing) Discover(ctx context.Context, fetcher scraper.Fetcher, req Request) Result {
	b := newBuilder(req)

	maxPages := d.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var links []parser.Link
	visited := make(map[string]bool)
	pageURL := d.PageURL
	for page := 0; pageURL != "" && page < maxPages; page++ {
		if ctx.Err() != nil {
			return b.result
		}
		visited[pageURL] = true
		resp, err := fetcher.Fetch(ctx, pageURL)
		if err != nil {
			b.fail(models.NoYear, pageURL, err)
			break
		}
		pageLinks, err := parser.ExtractLinks(resp.Body, resp.URL, d.Rule)
		if err != nil {
			b.fail(models.NoYear, pageURL, err)
			break
		}
		links = append(links, pageLinks...)

		next, ok, err := parser.NextPage(resp.Body, resp.URL, d.NextSelector)
		if err != nil || !ok || visited[next] {
			break
		}
		pageURL = next
	}

	byYear := make(map[int][]parser.Link)
	for _, link := range links {
		if link.Year == models.NoYear || !b.inRange(link.Year) {
			continue
		}
		byYear[link.Year] = append(byYear[link.Year], link)
	}
	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)
	for _, year := range years {
		for _, link := range byYear[year] {
			b.add(link.URL, year)
		}
	}

	// A partial listing cannot tell a missing year from an unread page.
	if len(b.result.Failures) > 0 {
		return b.result
	}
	for _, year := range req.Years {
		if len(byYear[year]) == 0 {
			b.anomaly(year, d.PageURL)
		}
	}
	return b.result
}

// StaticBundle is a single file with no year axis.
type StaticBundle struct {
	URL string
}

func (d StaticBundle) Shape() Shape { return ShapeStaticBundle }

func (d StaticBundle) Discover(_ context.Context, _ scraper.Fetcher, req Request) Result {
	b := newBuilder(req)
	b.add(d.URL, models.NoYear)
	return b.result
}

// YearRange maps a span of years to URL templates.
type YearRange struct {
	From int
	To   int
	URLs []string
}

// YearTemplate computes artifact URLs per year from templates; no listing
// page is fetched.
type YearTemplate struct {
	Ranges []YearRange
}

func (d YearTemplate) Shape() Shape { return ShapeYearTemplate }

func (d YearTemplate) Discover(ctx context.Context, _ scraper.Fetcher, req Request) Result {
	b := newBuilder(req)
	for _, year := range req.Years {
		if ctx.Err() != nil {
			break
		}
		found := false
		for _, r := range d.Ranges {
			if year < r.From || year > r.To {
				continue
			}
			for _, template := range r.URLs {
				b.add(ExpandYear(template, year), year)
				found = true
			}
		}
		if !found {
			b.anomaly(year, "")
		}
	}
	return b.result
}
