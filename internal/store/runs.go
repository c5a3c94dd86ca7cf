package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gradscout-engine/internal/domain"
)

type Run struct {
	ID             string                 `json:"id"`
	StartedAt      time.Time              `json:"started_at"`
	FinishedAt     time.Time              `json:"finished_at"`
	TotalCompanies int                    `json:"total_companies"`
	Succeeded      int                    `json:"succeeded"`
	Partial        int                    `json:"partial"`
	Failed         int                    `json:"failed"`
	TotalJobs      int                    `json:"total_jobs"`
	NewJobs        int                    `json:"new_jobs"`
	AverageScore   float64                `json:"average_score"`
	Summary        *domain.Summary        `json:"summary,omitempty"`
	Companies      []CompanyResultSummary `json:"companies,omitempty"`
}

type CompanyResultSummary struct {
	Company    string `json:"company"`
	Tier       string `json:"tier"`
	Extractor  string `json:"extractor"`
	Status     string `json:"status"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	Jobs       int    `json:"jobs"`
	DurationMS int64  `json:"duration_ms"`
}

var ErrNotFound = errors.New("not found")

// SaveRun records a run, its per-company results and every job in one
// transaction. Jobs dedupe on source_id: a job seen before only gets its
// last-seen fields and score refreshed. Returns how many jobs were new.
func SaveRun(ctx context.Context, db *sql.DB, r *domain.JobSearchResult) (added int, err error) {
	if r == nil {
		return 0, errors.New("nil result")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	summaryB, _ := json.Marshal(r.Summary)
	s := r.Summary
	if _, err := tx.ExecContext(ctx, `
INSERT INTO runs(id, started_at, finished_at, total_companies, succeeded, partial, failed, total_jobs, average_score, summary)
VALUES(?,?,?,?,?,?,?,?,?,?);`,
		r.RunID, formatTime(r.StartedAt), formatTime(r.FinishedAt),
		s.TotalCompanies, s.Succeeded, s.Partial, s.Failed, s.TotalJobs, s.AverageScore, string(summaryB),
	); err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	seenAt := formatTime(r.FinishedAt)
	for pos, c := range r.Companies {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO company_results(run_id, position, company, tier, extractor, status, error_kind, error, jobs, duration_ms)
VALUES(?,?,?,?,?,?,?,?,?,?);`,
			r.RunID, pos, c.Company, string(c.Tier), string(c.Extractor), string(c.Status),
			string(c.ErrorKind), c.Error, len(c.Jobs), c.Duration.Milliseconds(),
		); err != nil {
			return 0, fmt.Errorf("insert company result %q: %w", c.Company, err)
		}

		for _, j := range c.Jobs {
			isNew, err := upsertJob(ctx, tx, r.RunID, seenAt, j)
			if err != nil {
				return 0, fmt.Errorf("upsert job source_id=%q: %w", j.SourceID, err)
			}
			if isNew {
				added++
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE runs SET new_jobs = ? WHERE id = ?;`, added, r.RunID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

func upsertJob(ctx context.Context, tx *sql.Tx, runID, seenAt string, j domain.ScoredJob) (bool, error) {
	if strings.TrimSpace(j.SourceID) == "" {
		return false, errors.New("missing source_id")
	}
	tagsB, _ := json.Marshal(j.Tags)
	if j.Tags == nil {
		tagsB = []byte("[]")
	}
	var posted string
	if j.PostedAt != nil {
		posted = formatTime(*j.PostedAt)
	}

	res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO jobs(source_id, company, tier, title, location, work_mode, url, department, category, score,
  new_grad, location_ok, tags, posted_at, first_seen_at, last_seen_at, first_run_id, last_run_id)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		j.SourceID, j.Company, string(j.Tier), j.Title, j.Location, NormalizeWorkMode(j.WorkMode), j.URL, j.Department,
		string(j.Category), j.Score, j.NewGrad, j.LocationOK, string(tagsB), posted, seenAt, seenAt, runID, runID,
	)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	_, err = tx.ExecContext(ctx, `
UPDATE jobs
SET last_seen_at = ?, last_run_id = ?, score = ?, category = ?, tags = ?, location = ?, location_ok = ?
WHERE source_id = ?;`,
		seenAt, runID, j.Score, string(j.Category), string(tagsB), j.Location, j.LocationOK, j.SourceID,
	)
	return false, err
}

func ListRuns(ctx context.Context, db *sql.DB, limit int) ([]Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, started_at, finished_at, total_companies, succeeded, partial, failed, total_jobs, new_jobs, average_score
FROM runs
ORDER BY started_at DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run with its summary and company results in input order.
func GetRun(ctx context.Context, db *sql.DB, id string) (Run, error) {
	var summaryJSON string
	r, err := scanRun(func(dest ...any) error {
		return db.QueryRowContext(ctx, `
SELECT id, started_at, finished_at, total_companies, succeeded, partial, failed, total_jobs, new_jobs, average_score, summary
FROM runs WHERE id = ?;`, id).Scan(append(dest, &summaryJSON)...)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	var s domain.Summary
	if json.Unmarshal([]byte(summaryJSON), &s) == nil {
		r.Summary = &s
	}

	rows, err := db.QueryContext(ctx, `
SELECT company, tier, extractor, status, error_kind, error, jobs, duration_ms
FROM company_results
WHERE run_id = ?
ORDER BY position;`, id)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var c CompanyResultSummary
		if err := rows.Scan(&c.Company, &c.Tier, &c.Extractor, &c.Status, &c.ErrorKind, &c.Error, &c.Jobs, &c.DurationMS); err != nil {
			return Run{}, err
		}
		r.Companies = append(r.Companies, c)
	}
	return r, rows.Err()
}

func scanRun(scan func(dest ...any) error) (Run, error) {
	var r Run
	var started, finished string
	err := scan(&r.ID, &started, &finished, &r.TotalCompanies, &r.Succeeded, &r.Partial, &r.Failed,
		&r.TotalJobs, &r.NewJobs, &r.AverageScore)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, nil
}
