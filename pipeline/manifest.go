package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/models"
)

// LoadManifest reads the entries an earlier run on the same date left in
// dir. A missing manifest yields no entries. Lines that cannot be decoded
// are skipped with a warning.
func LoadManifest(format, dir string) ([]models.ManifestEntry, error) {
	switch format {
	case "json", "dual":
		return loadJSONManifest(filepath.Join(dir, jsonManifestName))
	case "csv":
		return loadCSVManifest(filepath.Join(dir, csvManifestName))
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", format)
	}
}

// OpenManifest replaces the manifest in dir, carrying over the prior
// entries for artifacts this run does not fetch again. Runs for different
// years of a source on the same date therefore share one manifest.
func OpenManifest(format, dir string, candidates []models.Candidate) (ManifestWriter, error) {
	prior, err := LoadManifest(format, dir)
	if err != nil {
		return nil, err
	}
	kept := retainEntries(prior, candidates)

	writer, err := NewManifestWriter(format, dir)
	if err != nil {
		return nil, err
	}
	if len(kept) > 0 {
		if err := writer.Write(kept); err != nil {
			writer.Close()
			return nil, fmt.Errorf("carry over manifest entries: %w", err)
		}
	}
	return writer, nil
}

type entryKey struct {
	year int
	url  string
}

func retainEntries(prior []models.ManifestEntry, candidates []models.Candidate) []models.ManifestEntry {
	replaced := make(map[entryKey]struct{}, len(candidates))
	for _, c := range candidates {
		replaced[entryKey{year: c.Year, url: c.URL}] = struct{}{}
	}

	kept := make([]models.ManifestEntry, 0, len(prior))
	for _, e := range prior {
		if _, ok := replaced[entryKey{year: e.Year, url: e.URL}]; ok {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func loadJSONManifest(path string) ([]models.ManifestEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open json manifest: %w", err)
	}
	defer f.Close()

	var entries []models.ManifestEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry models.ManifestEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			slog.Warn("skipping unreadable manifest line",
				slog.String("path", path),
				slog.Int("line", line),
				slog.Any("error", err),
			)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read json manifest: %w", err)
	}
	return entries, nil
}

func loadCSVManifest(path string) ([]models.ManifestEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open csv manifest: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(csvHeader)

	var entries []models.ManifestEntry
	for row := 0; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				slog.Warn("skipping unreadable manifest row", slog.String("path", path), slog.Any("error", err))
				continue
			}
			return nil, fmt.Errorf("read csv manifest: %w", err)
		}
		if row == 0 {
			continue
		}
		entry, err := entryFromRecord(record)
		if err != nil {
			slog.Warn("skipping unreadable manifest row",
				slog.String("path", path),
				slog.Int("row", row),
				slog.Any("error", err),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func entryFromRecord(record []string) (models.ManifestEntry, error) {
	entry := models.ManifestEntry{
		RunID:   record[0],
		Source:  record[1],
		URL:     record[3],
		Path:    record[4],
		Outcome: models.Outcome(record[6]),
		Reason:  record[7],
		Detail:  record[8],
	}
	if record[2] != "" {
		year, err := strconv.Atoi(record[2])
		if err != nil {
			return entry, fmt.Errorf("year: %w", err)
		}
		entry.Year = year
	}
	size, err := strconv.ParseInt(record[5], 10, 64)
	if err != nil {
		return entry, fmt.Errorf("bytes: %w", err)
	}
	entry.Bytes = size
	ts, err := time.Parse(time.RFC3339, record[9])
	if err != nil {
		return entry, fmt.Errorf("timestamp: %w", err)
	}
	entry.Timestamp = ts
	return entry, nil
}
