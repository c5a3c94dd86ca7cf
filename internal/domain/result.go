package domain

import (
	"fmt"
	"sort"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

type ErrorKind string

const (
	ErrorNone     ErrorKind = ""
	ErrorNetwork  ErrorKind = "network"
	ErrorParse    ErrorKind = "parse"
	ErrorConfig   ErrorKind = "config"
	ErrorTimeout  ErrorKind = "timeout"
	ErrorInternal ErrorKind = "internal"
)

type CompanyResult struct {
	Company   string        `json:"company"`
	Tier      Tier          `json:"tier"`
	Extractor ExtractorKind `json:"extractor"`
	Status    Status        `json:"status"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Jobs      []ScoredJob   `json:"jobs"`
	Duration  time.Duration `json:"duration_ns"`
}

// Cause renders the failure the way the CLI and API show it, e.g. "failed: timeout".
func (r CompanyResult) Cause() string {
	if r.Status == StatusSuccess {
		return string(r.Status)
	}
	if r.ErrorKind == ErrorTimeout {
		return fmt.Sprintf("%s: timeout", r.Status)
	}
	if r.Error == "" {
		return string(r.Status)
	}
	return fmt.Sprintf("%s: %s", r.Status, r.Error)
}

type Summary struct {
	TotalCompanies int              `json:"total_companies"`
	Succeeded      int              `json:"succeeded"`
	Partial        int              `json:"partial"`
	Failed         int              `json:"failed"`
	TotalJobs      int              `json:"total_jobs"`
	AverageScore   float64          `json:"average_match_score"`
	ByCategory     map[Category]int `json:"jobs_by_category"`
	ByTier         map[Tier]int     `json:"jobs_by_tier"`
	ByCompany      map[string]int   `json:"jobs_by_company"`
	Errors         []string         `json:"scraping_errors,omitempty"`
}

// JobSearchResult is the root aggregate of one run. Companies keep input order.
type JobSearchResult struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Companies  []CompanyResult `json:"companies"`
	Summary    Summary         `json:"summary"`
}

// Jobs flattens every company's jobs, best score first.
func (r *JobSearchResult) Jobs() []ScoredJob {
	var out []ScoredJob
	for _, c := range r.Companies {
		out = append(out, c.Jobs...)
	}
	SortJobs(out)
	return out
}

// SortJobs orders by score desc, then company, title and URL so output never
// depends on completion order.
func SortJobs(jobs []ScoredJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Company != b.Company {
			return a.Company < b.Company
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.URL < b.URL
	})
}

func Summarize(companies []CompanyResult) Summary {
	s := Summary{
		TotalCompanies: len(companies),
		ByCategory:     map[Category]int{},
		ByTier:         map[Tier]int{},
		ByCompany:      map[string]int{},
	}

	var total float64
	for _, c := range companies {
		switch c.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusPartial:
			s.Partial++
		default:
			s.Failed++
		}
		if c.Status != StatusSuccess {
			s.Errors = append(s.Errors, fmt.Sprintf("%s: %s", c.Company, c.Cause()))
		}
		s.ByCompany[c.Company] = len(c.Jobs)
		for _, j := range c.Jobs {
			s.TotalJobs++
			s.ByCategory[j.Category]++
			s.ByTier[c.Tier]++
			total += j.Score
		}
	}
	if s.TotalJobs > 0 {
		s.AverageScore = total / float64(s.TotalJobs)
	}
	return s
}
