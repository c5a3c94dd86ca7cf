// Package report renders a JobSearchResult as a terminal table, JSON or CSV and
// saves those renderings into the output directory.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gradscout-engine/internal/domain"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatAll   = "all"
)

type Options struct {
	TopN         int  // rows in the table; 0 means 30
	IncludeOther bool // list postings classified as other
}

// Formats expands "all" and drops duplicates and unknown names.
func Formats(in []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range in {
		switch f = strings.ToLower(strings.TrimSpace(f)); f {
		case FormatAll:
			add(FormatTable)
			add(FormatJSON)
			add(FormatCSV)
		case FormatTable, FormatJSON, FormatCSV:
			add(f)
		}
	}
	return out
}

// Save writes one file per format into dir, named jobs_<timestamp>.<ext>, and
// returns the paths written.
func Save(dir string, r *domain.JobSearchResult, formats []string, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	stamp := r.FinishedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	base := "jobs_" + stamp.Local().Format("20060102_150405")

	var paths []string
	for _, f := range Formats(formats) {
		ext := map[string]string{FormatTable: "txt", FormatJSON: "json", FormatCSV: "csv"}[f]
		path := filepath.Join(dir, base+"."+ext)

		fh, err := os.Create(path)
		if err != nil {
			return paths, err
		}
		switch f {
		case FormatTable:
			err = WriteTable(fh, r, opts)
		case FormatJSON:
			err = WriteJSON(fh, r)
		case FormatCSV:
			err = WriteCSV(fh, r)
		}
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
