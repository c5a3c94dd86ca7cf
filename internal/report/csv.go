package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"gradscout-engine/internal/domain"
)

var csvHeader = []string{
	"company", "title", "category", "location", "work_mode", "url",
	"company_tier", "match_score", "new_grad", "location_ok", "tags", "source_id", "found_at",
}

func WriteCSV(w io.Writer, r *domain.JobSearchResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	found := r.FinishedAt.UTC().Format("2006-01-02 15:04:05")
	for _, j := range r.Jobs() {
		if err := cw.Write([]string{
			j.Company,
			j.Title,
			string(j.Category),
			j.Location,
			j.WorkMode,
			j.URL,
			string(j.Tier),
			strconv.FormatFloat(j.Score, 'f', 3, 64),
			strconv.FormatBool(j.NewGrad),
			strconv.FormatBool(j.LocationOK),
			strings.Join(j.Tags, ";"),
			j.SourceID,
			found,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
