package report

import (
	"encoding/json"
	"io"
	"time"

	"gradscout-engine/internal/domain"
)

type jsonReport struct {
	RunID       string                 `json:"run_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Summary     domain.Summary         `json:"summary"`
	Companies   []domain.CompanyResult `json:"companies"`
	Jobs        []domain.ScoredJob     `json:"jobs"`
}

// WriteJSON writes the flattened, score-sorted jobs with the summary and per-company
// results. Company jobs are left out of the companies array to avoid repeating them.
func WriteJSON(w io.Writer, r *domain.JobSearchResult) error {
	companies := make([]domain.CompanyResult, len(r.Companies))
	for i, c := range r.Companies {
		c.Jobs = nil
		companies[i] = c
	}
	jobs := r.Jobs()
	if jobs == nil {
		jobs = []domain.ScoredJob{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		RunID:       r.RunID,
		GeneratedAt: r.FinishedAt,
		Summary:     r.Summary,
		Companies:   companies,
		Jobs:        jobs,
	})
}
