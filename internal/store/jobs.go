package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Job struct {
	ID          int64     `json:"id"`
	SourceID    string    `json:"source_id"`
	Company     string    `json:"company"`
	Tier        string    `json:"tier"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	WorkMode    string    `json:"work_mode"`
	URL         string    `json:"url"`
	Department  string    `json:"department,omitempty"`
	Category    string    `json:"category"`
	Score       float64   `json:"match_score"`
	NewGrad     bool      `json:"new_grad"`
	LocationOK  bool      `json:"location_ok"`
	Tags        []string  `json:"tags"`
	PostedAt    string    `json:"posted_at,omitempty"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	FirstRunID  string    `json:"first_run_id"`
}

type ListJobsOpts struct {
	Sort     string // score | date | company | title
	Window   string // 24h | 7d | all
	Category string
	Company  string
	RunID    string // only jobs first seen in this run
	MinScore float64
	Limit    int
}

func ListJobs(ctx context.Context, db *sql.DB, opts ListJobsOpts) ([]Job, error) {
	if opts.Sort == "" {
		opts.Sort = "score"
	}
	if opts.Window == "" {
		opts.Window = "7d"
	}
	if opts.Limit <= 0 || opts.Limit > 2000 {
		opts.Limit = 500
	}

	// whitelist sort columns (prevents SQL injection)
	orderBy := map[string]string{
		"score":   "score DESC, company ASC, title ASC",
		"date":    "first_seen_at DESC, score DESC",
		"company": "company ASC, score DESC",
		"title":   "title ASC, company ASC",
	}[opts.Sort]
	if orderBy == "" {
		orderBy = "score DESC, company ASC, title ASC"
	}

	var where []string
	var args []any
	switch opts.Window {
	case "24h":
		where = append(where, "last_seen_at >= datetime('now','-24 hours')")
	case "all":
	default:
		where = append(where, "last_seen_at >= datetime('now','-7 days')")
	}
	if opts.Category != "" {
		where = append(where, "category = ?")
		args = append(args, opts.Category)
	}
	if opts.Company != "" {
		where = append(where, "company = ? COLLATE NOCASE")
		args = append(args, opts.Company)
	}
	if opts.RunID != "" {
		where = append(where, "first_run_id = ?")
		args = append(args, opts.RunID)
	}
	if opts.MinScore > 0 {
		where = append(where, "score >= ?")
		args = append(args, opts.MinScore)
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
SELECT id, source_id, company, tier, title, location, work_mode, url, department, category, score,
  new_grad, location_ok, tags, posted_at, first_seen_at, last_seen_at, first_run_id
FROM jobs
%s
ORDER BY %s
LIMIT ?;
`, clause, orderBy)

	rows, err := db.QueryContext(ctx, query, append(args, opts.Limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var j Job
		var tagsJSON, firstSeen, lastSeen string
		if err := rows.Scan(
			&j.ID, &j.SourceID, &j.Company, &j.Tier, &j.Title, &j.Location, &j.WorkMode, &j.URL,
			&j.Department, &j.Category, &j.Score, &j.NewGrad, &j.LocationOK, &tagsJSON, &j.PostedAt,
			&firstSeen, &lastSeen, &j.FirstRunID,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &j.Tags)
		j.FirstSeenAt = parseTime(firstSeen)
		j.LastSeenAt = parseTime(lastSeen)
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CleanupOldJobs removes jobs not seen within the retention window.
func CleanupOldJobs(ctx context.Context, db *sql.DB, retention time.Duration) (deleted int64, err error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := formatTime(time.Now().Add(-retention))
	res, err := db.ExecContext(ctx, `DELETE FROM jobs WHERE last_seen_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func NormalizeWorkMode(mode string) string {
	m := strings.ToLower(strings.TrimSpace(mode))
	switch {
	case strings.Contains(m, "remote"):
		return "Remote"
	case strings.Contains(m, "hybrid"):
		return "Hybrid"
	case strings.Contains(m, "onsite"), strings.Contains(m, "on-site"):
		return "Onsite"
	case m == "":
		return "Unknown"
	default:
		return mode
	}
}
