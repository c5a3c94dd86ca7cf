package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"gradscout-engine/internal/domain"

	"github.com/mattn/go-runewidth"
)

const defaultTopN = 30

type column struct {
	header string
	max    int // display width cap
}

var tableColumns = []column{
	{"Company", 20},
	{"Position", 50},
	{"Category", 22},
	{"Location", 25},
	{"Score", 5},
	{"Tier", 28},
}

// WriteTable prints the summary, a grid of the top matches and the failures.
func WriteTable(w io.Writer, r *domain.JobSearchResult, opts Options) error {
	bw := bufio.NewWriter(w)
	s := r.Summary

	fmt.Fprintf(bw, "=== JOB SEARCH RESULTS (run %s) ===\n", r.RunID)
	fmt.Fprintf(bw, "Found %d postings from %d/%d companies (%d partial, %d failed)\n",
		s.TotalJobs, s.Succeeded+s.Partial, s.TotalCompanies, s.Partial, s.Failed)
	fmt.Fprintf(bw, "Average match score: %.2f\n", s.AverageScore)

	if len(s.ByCategory) > 0 {
		fmt.Fprintln(bw, "\nJobs by category:")
		for _, c := range append(append([]domain.Category{}, domain.CategoryPriority...), domain.CategoryOther) {
			if n := s.ByCategory[c]; n > 0 {
				fmt.Fprintf(bw, "  %s: %d\n", displayName(string(c)), n)
			}
		}
	}

	var rows [][]string
	for _, j := range r.Jobs() {
		if j.Category == domain.CategoryOther && !opts.IncludeOther {
			continue
		}
		rows = append(rows, []string{
			j.Company,
			j.Title,
			string(j.Category),
			orDash(j.Location),
			fmt.Sprintf("%.2f", j.Score),
			string(j.Tier),
		})
	}

	topN := opts.TopN
	if topN <= 0 {
		topN = defaultTopN
	}

	if len(rows) == 0 {
		fmt.Fprintln(bw, "\nNo jobs found matching criteria.")
	} else {
		fmt.Fprintln(bw, "\nTop matches:")
		shown := rows
		if len(shown) > topN {
			shown = shown[:topN]
		}
		writeGrid(bw, shown)
		if len(rows) > topN {
			fmt.Fprintf(bw, "... and %d more positions\n", len(rows)-topN)
		}
	}

	writeFailures(bw, r.Companies)
	return bw.Flush()
}

func writeGrid(w io.Writer, rows [][]string) {
	widths := make([]int, len(tableColumns))
	for i, c := range tableColumns {
		widths[i] = runewidth.StringWidth(c.header)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(row))
		for i, v := range row {
			v = runewidth.Truncate(v, tableColumns[i].max, "...")
			cells[r][i] = v
			if cw := runewidth.StringWidth(v); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	sep := func() {
		var b strings.Builder
		b.WriteString("+")
		for _, wd := range widths {
			b.WriteString(strings.Repeat("-", wd+2))
			b.WriteString("+")
		}
		fmt.Fprintln(w, b.String())
	}
	line := func(vals []string) {
		var b strings.Builder
		b.WriteString("|")
		for i, v := range vals {
			b.WriteString(" ")
			b.WriteString(runewidth.FillRight(v, widths[i]))
			b.WriteString(" |")
		}
		fmt.Fprintln(w, b.String())
	}

	headers := make([]string, len(tableColumns))
	for i, c := range tableColumns {
		headers[i] = c.header
	}
	sep()
	line(headers)
	sep()
	for _, row := range cells {
		line(row)
	}
	sep()
}

// writeFailures separates selector drift (parse) from network trouble so the
// user knows whether to fix config or just retry later.
func writeFailures(w io.Writer, companies []domain.CompanyResult) {
	groups := map[domain.ErrorKind][]string{}
	for _, c := range companies {
		if c.Status == domain.StatusSuccess {
			continue
		}
		groups[c.ErrorKind] = append(groups[c.ErrorKind], fmt.Sprintf("%s: %s", c.Company, c.Cause()))
	}
	if len(groups) == 0 {
		return
	}

	titles := map[domain.ErrorKind]string{
		domain.ErrorParse:    "Selector drift / unexpected markup (fix companies.yml)",
		domain.ErrorNetwork:  "Network errors (retry later)",
		domain.ErrorTimeout:  "Timed out",
		domain.ErrorConfig:   "Invalid company config",
		domain.ErrorInternal: "Internal errors",
	}
	kinds := make([]string, 0, len(groups))
	for k := range groups {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	fmt.Fprintln(w, "\nScraping problems:")
	for _, k := range kinds {
		kind := domain.ErrorKind(k)
		title := titles[kind]
		if title == "" {
			title = "Other"
		}
		fmt.Fprintf(w, "  %s:\n", title)
		for _, line := range groups[kind] {
			fmt.Fprintf(w, "    - %s\n", line)
		}
	}
}

func displayName(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
