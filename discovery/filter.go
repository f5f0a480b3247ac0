package discovery

import (
	"log/slog"

	"github.com/aluiziolira/go-scrape-pudl/models"
)

// FilterYear keeps the candidates of the requested year. NoYear passes
// everything through. For sources without a year axis the requested year
// is ignored with a warning. An empty result is not an error.
func FilterYear(candidates []models.Candidate, year int, yearless bool) []models.Candidate {
	if yearless {
		if year != models.NoYear {
			source := ""
			if len(candidates) > 0 {
				source = candidates[0].Source
			}
			slog.Warn("source has no year axis, ignoring requested year",
				slog.String("source", source),
				slog.Int("year", year),
			)
		}
		return candidates
	}
	if year == models.NoYear {
		return candidates
	}

	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Year == year {
			out = append(out, c)
		}
	}
	return out
}
