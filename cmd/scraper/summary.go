package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/models"
	"github.com/aluiziolira/go-scrape-pudl/registry"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func yearLabel(year int) string {
	if year == models.NoYear {
		return "-"
	}
	return strconv.Itoa(year)
}

func printSummary(summaries []*models.RunSummary, duration time.Duration) {
	t := newTable()
	t.AppendHeader(table.Row{"Source", "Year", "Stored", "Failed", "Size"})

	var stored, failed int
	var size int64
	for _, s := range summaries {
		if s == nil {
			continue
		}
		if len(s.Years) == 0 {
			status := "no data"
			if s.Aborted {
				status = "aborted"
			}
			t.AppendRow(table.Row{s.Source, status, 0, len(s.DiscoveryFailures), "-"})
		}
		for _, year := range s.SortedYears() {
			ys := s.Years[year]
			t.AppendRow(table.Row{s.Source, yearLabel(year), ys.Succeeded, ys.Failed, humanize.IBytes(uint64(ys.Bytes))})
		}
		stored += s.Succeeded()
		failed += s.Failures()
		size += s.Bytes()
	}
	t.AppendFooter(table.Row{"Total", "", stored, failed, humanize.IBytes(uint64(size))})
	fmt.Println()
	t.Render()

	for _, s := range summaries {
		if s == nil {
			continue
		}
		fmt.Printf("%s (run %s)\n", s.Source, s.RunID)
		fmt.Printf("  Output:      %s\n", s.Dir)
		fmt.Printf("  Manifest:    %s\n", strings.Join(s.ManifestPaths, ", "))
		for _, df := range s.DiscoveryFailures {
			fmt.Printf("  Listing failed: %s year %s: %s\n", df.URL, yearLabel(df.Year), df.Reason)
		}
		if len(s.Anomalies) > 0 {
			years := make([]string, len(s.Anomalies))
			for i, y := range s.Anomalies {
				years[i] = yearLabel(y)
			}
			fmt.Printf("  No links for: %s (upstream layout may have changed)\n", strings.Join(years, ", "))
		}
		if s.Aborted {
			fmt.Println("  Interrupted before all artifacts were fetched")
		}
	}
	fmt.Printf("Duration: %s\n", duration.Round(time.Millisecond))
}

func printSources(sources []registry.Source) {
	t := newTable()
	t.AppendHeader(table.Row{"Source", "Discovery", "Years", "Kind", "Min size", "Description"})
	for _, s := range sources {
		years := "-"
		switch {
		case s.Yearless():
		case s.Bounded():
			years = fmt.Sprintf("%d-%d", s.MinYear, s.MaxYear)
		default:
			years = fmt.Sprintf("%d-", s.MinYear)
		}
		t.AppendRow(table.Row{
			s.Name,
			string(s.Discoverer.Shape()),
			years,
			string(s.Kind),
			humanize.IBytes(uint64(s.MinBytes)),
			s.Description,
		})
	}
	t.Render()
}
