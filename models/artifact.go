// Package models defines data structures for the scraper.
package models

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

// NoYear marks candidates of sources without a year axis.
const NoYear = 0

// Kind is the expected file type of an artifact.
type Kind string

const (
	KindZip     Kind = "zip"
	KindXLSX    Kind = "xlsx"
	KindXLS     Kind = "xls"
	KindCSV     Kind = "csv"
	KindUnknown Kind = "unknown"
)

// Outcome records whether an artifact was retrieved and stored.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// CrawlRequest asks for one source, optionally narrowed to one year.
type CrawlRequest struct {
	Source string
	Year   int // NoYear means every year the source publishes
}

// AllYears reports whether the request spans every published year.
func (r CrawlRequest) AllYears() bool {
	return r.Year == NoYear
}

func (r CrawlRequest) String() string {
	if r.AllYears() {
		return r.Source + "@all"
	}
	return fmt.Sprintf("%s@%d", r.Source, r.Year)
}

// Candidate is one downloadable artifact found during discovery.
type Candidate struct {
	Source string `json:"source"`
	Year   int    `json:"year,omitempty"`
	URL    string `json:"url"`
	Kind   Kind   `json:"kind"`
	// Name overrides the filename taken from the URL; static bundles use it.
	Name string `json:"name,omitempty"`
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Identity is the file name the artifact is stored under within a run
// directory: "<year>-<filename>" for yearly artifacts, the plain file name
// otherwise.
func (c Candidate) Identity() string {
	name := c.Name
	if name == "" {
		name = FilenameFromURL(c.URL)
	}
	name = unsafeName.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = c.Source
	}
	if c.Year == NoYear {
		return name
	}
	return fmt.Sprintf("%d-%s", c.Year, name)
}

// FilenameFromURL returns the last path segment of rawURL, unescaped.
func FilenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	base := path.Base(parsed.Path)
	if base == "/" || base == "." {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		return unescaped
	}
	return base
}

// FetchedArtifact is a candidate after the fetch attempt.
type FetchedArtifact struct {
	Candidate Candidate
	Body      []byte
	Size      int64
	FetchedAt time.Time
	Attempts  int
	Outcome   Outcome
	Reason    string // short failure class, e.g. "content mismatch"
	Detail    string // full failure message
}

// Succeeded reports whether the artifact can be materialized.
func (a *FetchedArtifact) Succeeded() bool {
	return a != nil && a.Outcome == OutcomeSuccess && a.Size > 0
}
