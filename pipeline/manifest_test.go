package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-scrape-pudl/models"
)

func TestLoadManifestMissing(t *testing.T) {
	for _, format := range []string{"json", "csv", "dual"} {
		entries, err := LoadManifest(format, t.TempDir())
		if err != nil {
			t.Fatalf("%s: load missing manifest: %v", format, err)
		}
		if len(entries) != 0 {
			t.Fatalf("%s: entries=%d, want 0", format, len(entries))
		}
	}
}

func TestLoadManifestReadsWrittenEntries(t *testing.T) {
	for _, format := range []string{"json", "csv"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			writer, err := NewManifestWriter(format, dir)
			if err != nil {
				t.Fatalf("create writer: %v", err)
			}
			if err := writer.Write(sampleEntries()); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			entries, err := LoadManifest(format, dir)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			want := sampleEntries()
			if len(entries) != len(want) {
				t.Fatalf("entries=%d, want %d", len(entries), len(want))
			}
			for i := range want {
				got := entries[i]
				if got.URL != want[i].URL || got.Year != want[i].Year || got.Outcome != want[i].Outcome ||
					got.Bytes != want[i].Bytes || got.Reason != want[i].Reason || !got.Timestamp.Equal(want[i].Timestamp) {
					t.Fatalf("entry %d = %+v, want %+v", i, got, want[i])
				}
			}
		})
	}
}

func TestLoadManifestSkipsUnreadableLines(t *testing.T) {
	dir := t.TempDir()
	content := `{"run_id":"run-1","source":"cems","year":2007,"url":"https://gaftp.epa.gov/2007al01.zip","bytes":10,"outcome":"success","timestamp":"2024-06-15T08:00:00Z"}
{truncated
`
	if err := os.WriteFile(filepath.Join(dir, jsonManifestName), []byte(content), 0o644); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}

	entries, err := LoadManifest("json", dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 1 || entries[0].Year != 2007 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestOpenManifestReplacesOnlyRefetchedEntries(t *testing.T) {
	dir := t.TempDir()
	seed, err := NewJSONWriter(filepath.Join(dir, jsonManifestName))
	if err != nil {
		t.Fatalf("seed writer: %v", err)
	}
	if err := seed.Write(sampleEntries()); err != nil {
		t.Fatalf("seed write: %v", err)
	}
	seed.Close()

	refetched := []models.Candidate{{
		Source: "eia861",
		Year:   2020,
		URL:    "https://www.eia.gov/electricity/data/eia861/zip/f8612020.zip",
		Kind:   models.KindZip,
	}}
	writer, err := OpenManifest("json", dir, refetched)
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries := readJSONManifest(t, filepath.Join(dir, jsonManifestName))
	if len(entries) != 1 || entries[0].Year != 2019 {
		t.Fatalf("only the 2019 entry should be carried over, got %+v", entries)
	}
}

func TestRetainEntries(t *testing.T) {
	prior := sampleEntries()

	tests := []struct {
		name       string
		candidates []models.Candidate
		wantYears  []int
	}{
		{name: "nothing refetched", candidates: nil, wantYears: []int{2019, 2020}},
		{
			name:       "same url other year",
			candidates: []models.Candidate{{Year: 2021, URL: prior[0].URL}},
			wantYears:  []int{2019, 2020},
		},
		{
			name:       "both refetched",
			candidates: []models.Candidate{{Year: 2019, URL: prior[0].URL}, {Year: 2020, URL: prior[1].URL}},
			wantYears:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept := retainEntries(prior, tt.candidates)
			if len(kept) != len(tt.wantYears) {
				t.Fatalf("kept=%d, want %d", len(kept), len(tt.wantYears))
			}
			for i, year := range tt.wantYears {
				if kept[i].Year != year {
					t.Fatalf("kept[%d].Year=%d, want %d", i, kept[i].Year, year)
				}
			}
		})
	}
}
