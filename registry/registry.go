// Package registry maps source names to their discovery strategy and the
// validation rules applied to their artifacts. Adding a data portal means
// adding an entry here; nothing downstream changes.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/discovery"
	"github.com/aluiziolira/go-scrape-pudl/models"
	"github.com/aluiziolira/go-scrape-pudl/parser"
)

var (
	// ErrUnknownSource is wrapped by ConfigurationError for unregistered names.
	ErrUnknownSource = errors.New("unknown source")
	// ErrUnsupportedYear is wrapped by ConfigurationError for out-of-range years.
	ErrUnsupportedYear = errors.New("unsupported year")
)

// ConfigurationError rejects a request before any network activity.
type ConfigurationError struct {
	Source string
	Year   int
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Year != models.NoYear {
		return fmt.Sprintf("configuration error for %s year %d: %v", e.Source, e.Year, e.Err)
	}
	return fmt.Sprintf("configuration error for %s: %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Source is an immutable data-portal definition.
type Source struct {
	Name        string
	Description string
	// MinYear is the first published year; MaxYear 0 means unbounded.
	MinYear int
	MaxYear int
	Kind    models.Kind
	// MinBytes is the size floor for a fetched artifact.
	MinBytes int64
	// BundleName is the stored file name for static bundles.
	BundleName string
	Discoverer discovery.Discoverer
}

// Yearless reports whether the source has no year axis.
func (s Source) Yearless() bool {
	return s.Discoverer != nil && s.Discoverer.Shape() == discovery.ShapeStaticBundle
}

// Bounded reports whether the source publishes a closed range of years.
func (s Source) Bounded() bool {
	return s.MaxYear != 0
}

// ContentRule is the post-validation applied to this source's artifacts.
func (s Source) ContentRule() parser.ContentRule {
	return parser.ContentRule{MinBytes: s.MinBytes, Kind: s.Kind}
}

// CheckYear validates a requested year. Years before MinYear are always
// rejected; years after MaxYear only for bounded sources. Yearless sources
// accept any year (it is ignored later).
func (s Source) CheckYear(year int) error {
	if year == models.NoYear || s.Yearless() {
		return nil
	}
	if year < s.MinYear {
		return &ConfigurationError{
			Source: s.Name,
			Year:   year,
			Err:    fmt.Errorf("%w: years before %d are not published", ErrUnsupportedYear, s.MinYear),
		}
	}
	if s.Bounded() && year > s.MaxYear {
		return &ConfigurationError{
			Source: s.Name,
			Year:   year,
			Err:    fmt.Errorf("%w: years after %d are not published", ErrUnsupportedYear, s.MaxYear),
		}
	}
	return nil
}

// DiscoveryYears lists the years discovery should cover. For "all years"
// on an unbounded source the range ends at the year before runDate, the
// latest year expected to be fully published.
func (s Source) DiscoveryYears(requested int, runDate time.Time) []int {
	if s.Yearless() {
		return nil
	}
	if requested != models.NoYear {
		return []int{requested}
	}
	last := s.MaxYear
	if last == 0 {
		last = runDate.Year() - 1
	}
	if last < s.MinYear {
		return nil
	}
	years := make([]int, 0, last-s.MinYear+1)
	for year := s.MinYear; year <= last; year++ {
		years = append(years, year)
	}
	return years
}

// DiscoveryRequest builds the discoverer input for a run.
func (s Source) DiscoveryRequest(requested int, runDate time.Time, dedupeMaxSize int) discovery.Request {
	return discovery.Request{
		Source:        s.Name,
		Years:         s.DiscoveryYears(requested, runDate),
		MinYear:       s.MinYear,
		MaxYear:       s.MaxYear,
		Kind:          s.Kind,
		BundleName:    s.BundleName,
		DedupeMaxSize: dedupeMaxSize,
	}
}

// Registry is a read-only set of sources.
type Registry struct {
	sources map[string]Source
}

// New builds a registry, rejecting duplicate or incomplete entries.
func New(sources ...Source) (*Registry, error) {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		if s.Name == "" {
			return nil, fmt.Errorf("source without a name")
		}
		if s.Discoverer == nil {
			return nil, fmt.Errorf("source %s has no discoverer", s.Name)
		}
		if s.MinBytes <= 0 {
			return nil, fmt.Errorf("source %s needs a positive byte floor", s.Name)
		}
		if !s.Yearless() && s.MinYear <= 0 {
			return nil, fmt.Errorf("source %s needs a first year", s.Name)
		}
		if s.Bounded() && s.MaxYear < s.MinYear {
			return nil, fmt.Errorf("source %s has an empty year range", s.Name)
		}
		if _, dup := r.sources[s.Name]; dup {
			return nil, fmt.Errorf("source %s registered twice", s.Name)
		}
		r.sources[s.Name] = s
	}
	return r, nil
}

// Lookup returns the source registered under name.
func (r *Registry) Lookup(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return Source{}, &ConfigurationError{Source: name, Err: ErrUnknownSource}
	}
	return s, nil
}

// Names lists registered sources alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sources returns every source, sorted by name.
func (r *Registry) Sources() []Source {
	out := make([]Source, 0, len(r.sources))
	for _, name := range r.Names() {
		out = append(out, r.sources[name])
	}
	return out
}
