package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/models"
)

const (
	csvManifestName  = "manifest.csv"
	jsonManifestName = "manifest.jsonl"
)

// ManifestWriter records one entry per attempted artifact.
type ManifestWriter interface {
	Write(entries []models.ManifestEntry) error
	Close() error
	Validate() error
	Paths() []string
}

// NewManifestWriter creates the manifest for format inside dir, truncating
// any existing one. Runs go through OpenManifest to keep prior entries.
func NewManifestWriter(format, dir string) (ManifestWriter, error) {
	switch format {
	case "json":
		return NewJSONWriter(filepath.Join(dir, jsonManifestName))
	case "csv":
		return NewCSVWriter(filepath.Join(dir, csvManifestName))
	case "dual":
		return NewDualWriter(filepath.Join(dir, csvManifestName), filepath.Join(dir, jsonManifestName))
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", format)
	}
}

var csvHeader = []string{"run_id", "source", "year", "url", "path", "bytes", "outcome", "reason", "detail", "timestamp"}

// CSVWriter writes manifest entries to CSV.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv manifest: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		path:   filename,
		file:   f,
		writer: writer,
	}, nil
}

// Write appends entries and flushes them to disk.
func (cw *CSVWriter) Write(entries []models.ManifestEntry) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, e := range entries {
		year := ""
		if e.Year != models.NoYear {
			year = strconv.Itoa(e.Year)
		}
		record := []string{
			e.RunID,
			e.Source,
			year,
			e.URL,
			e.Path,
			strconv.FormatInt(e.Bytes, 10),
			string(e.Outcome),
			e.Reason,
			e.Detail,
			e.Timestamp.UTC().Format(time.RFC3339),
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the manifest at least carries its header.
func (cw *CSVWriter) Validate() error {
	info, err := os.Stat(cw.path)
	if err != nil {
		return fmt.Errorf("stat csv manifest: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv manifest is empty")
	}
	return nil
}

func (cw *CSVWriter) Paths() []string {
	return []string{cw.path}
}

// JSONWriter writes newline-delimited JSON entries.
type JSONWriter struct {
	path    string
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json manifest: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		path:    filename,
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends entries in JSONL format.
func (jw *JSONWriter) Write(entries []models.ManifestEntry) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, e := range entries {
		if err := jw.encoder.Encode(e); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate checks the manifest still exists. A run that found nothing
// legitimately leaves it empty.
func (jw *JSONWriter) Validate() error {
	if _, err := os.Stat(jw.path); err != nil {
		return fmt.Errorf("stat json manifest: %w", err)
	}
	return nil
}

func (jw *JSONWriter) Paths() []string {
	return []string{jw.path}
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
