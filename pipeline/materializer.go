package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/models"
)

const dateLayout = "2006-01-02"

// RunDir is <root>/<source>/<YYYY-MM-DD>.
func RunDir(root, source string, runDate time.Time) string {
	return filepath.Join(root, source, runDate.Format(dateLayout))
}

// Materializer stores successful artifacts under the run directory and
// appends every outcome to the manifest. A destination path only ever
// holds a complete, validated body.
type Materializer struct {
	dir    string
	runID  string
	writer ManifestWriter
}

// NewMaterializer creates dir. Failing to create it is fatal for the run.
func NewMaterializer(dir, runID string, writer ManifestWriter) (*Materializer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory %q: %w", dir, err)
	}
	return &Materializer{dir: dir, runID: runID, writer: writer}, nil
}

// Path is the destination of candidate, unique per candidate identity.
func (m *Materializer) Path(c models.Candidate) string {
	return filepath.Join(m.dir, c.Identity())
}

// Materialize persists artifact if it succeeded and records its manifest
// entry either way. The returned error is a filesystem failure.
func (m *Materializer) Materialize(artifact *models.FetchedArtifact) (models.ManifestEntry, error) {
	c := artifact.Candidate
	entry := models.ManifestEntry{
		RunID:     m.runID,
		Source:    c.Source,
		Year:      c.Year,
		URL:       c.URL,
		Outcome:   artifact.Outcome,
		Reason:    artifact.Reason,
		Detail:    artifact.Detail,
		Timestamp: artifact.FetchedAt,
	}

	if artifact.Succeeded() {
		dest := m.Path(c)
		n, err := writeAtomic(dest, bytes.NewReader(artifact.Body))
		if err != nil {
			return entry, fmt.Errorf("store %s: %w", c.URL, err)
		}
		entry.Path = dest
		entry.Bytes = n
		slog.Debug("artifact stored",
			slog.String("source", c.Source),
			slog.Int("year", c.Year),
			slog.String("path", dest),
			slog.Int64("bytes", n),
		)
	}

	if err := m.writer.Write([]models.ManifestEntry{entry}); err != nil {
		return entry, fmt.Errorf("write manifest: %w", err)
	}
	return entry, nil
}

// writeAtomic copies r into a temporary sibling of path and renames it into
// place. On any error the temporary file is removed and path is untouched.
func writeAtomic(path string, r io.Reader) (n int64, err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	n, err = io.Copy(tmp, r)
	if err != nil {
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return 0, fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("rename into place: %w", err)
	}
	return n, nil
}
