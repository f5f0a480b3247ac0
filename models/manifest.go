package models

import (
	"sort"
	"time"
)

// ManifestEntry is the durable record of one attempted artifact.
type ManifestEntry struct {
	RunID     string    `csv:"run_id" json:"run_id"`
	Source    string    `csv:"source" json:"source"`
	Year      int       `csv:"year" json:"year,omitempty"`
	URL       string    `csv:"url" json:"url"`
	Path      string    `csv:"path" json:"path,omitempty"`
	Bytes     int64     `csv:"bytes" json:"bytes"`
	Outcome   Outcome   `csv:"outcome" json:"outcome"`
	Reason    string    `csv:"reason" json:"reason,omitempty"`
	Detail    string    `csv:"detail" json:"detail,omitempty"`
	Timestamp time.Time `csv:"timestamp" json:"timestamp"`
}

// YearSummary counts outcomes for one year of a run.
type YearSummary struct {
	Succeeded int
	Failed    int
	Bytes     int64
}

// DiscoveryFailure records a listing that could not be fetched.
type DiscoveryFailure struct {
	Year   int // NoYear when the failure covers the whole source
	URL    string
	Reason string
}

// RunSummary holds the overall result of one source run.
type RunSummary struct {
	RunID             string
	Source            string
	RequestedYear     int
	RunDate           time.Time
	StartTime         time.Time
	EndTime           time.Time
	Dir               string
	ManifestPaths     []string
	Years             map[int]*YearSummary
	DiscoveryFailures []DiscoveryFailure
	Anomalies         []int
	Candidates        int
	NoData            bool
	Aborted           bool
}

// NewRunSummary prepares an empty summary.
func NewRunSummary(runID, source string, requestedYear int, runDate time.Time) *RunSummary {
	return &RunSummary{
		RunID:         runID,
		Source:        source,
		RequestedYear: requestedYear,
		RunDate:       runDate,
		StartTime:     time.Now(),
		Years:         make(map[int]*YearSummary),
	}
}

// Record folds a manifest entry into the per-year counters.
func (s *RunSummary) Record(entry ManifestEntry) {
	ys, ok := s.Years[entry.Year]
	if !ok {
		ys = &YearSummary{}
		s.Years[entry.Year] = ys
	}
	if entry.Outcome == OutcomeSuccess {
		ys.Succeeded++
		ys.Bytes += entry.Bytes
		return
	}
	ys.Failed++
}

// Succeeded is the number of artifacts stored.
func (s *RunSummary) Succeeded() int {
	total := 0
	for _, ys := range s.Years {
		total += ys.Succeeded
	}
	return total
}

// Failures counts failed artifacts plus listings that could not be fetched.
// A non-zero value is the signal for a non-zero exit code.
func (s *RunSummary) Failures() int {
	total := len(s.DiscoveryFailures)
	for _, ys := range s.Years {
		total += ys.Failed
	}
	return total
}

// Bytes is the total number of bytes stored.
func (s *RunSummary) Bytes() int64 {
	var total int64
	for _, ys := range s.Years {
		total += ys.Bytes
	}
	return total
}

// SortedYears returns the years present in the summary in ascending order.
func (s *RunSummary) SortedYears() []int {
	years := make([]int, 0, len(s.Years))
	for year := range s.Years {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}
