package smartrecruiters

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/scrape/util"
)

const (
	DefaultAPIBase  = "https://api.smartrecruiters.com"
	DefaultJobsBase = "https://jobs.smartrecruiters.com"

	pageSize  = 100
	maxOffset = 5000
)

type Extractor struct {
	client   *util.Client
	apiBase  string
	jobsBase string
}

type Option func(*Extractor)

func WithBaseURLs(api, jobs string) Option {
	return func(e *Extractor) {
		if api != "" {
			e.apiBase = strings.TrimRight(api, "/")
		}
		if jobs != "" {
			e.jobsBase = strings.TrimRight(jobs, "/")
		}
	}
}

func New(client *util.Client, opts ...Option) *Extractor {
	e := &Extractor{client: client, apiBase: DefaultAPIBase, jobsBase: DefaultJobsBase}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Extractor) Kind() domain.ExtractorKind { return domain.KindSmartRecruiters }

// Public API shape: { "content": [...], "totalFound": N, "offset": O, "limit": L }
type postingsResponse struct {
	Content    []posting `json:"content"`
	TotalFound int       `json:"totalFound"`
	Offset     int       `json:"offset"`
	Limit      int       `json:"limit"`
}

type posting struct {
	ID           string    `json:"id"`
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	ReleasedDate time.Time `json:"releasedDate"`
	Ref          string    `json:"ref"`
	Location     struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Remote  bool   `json:"remote"`
	} `json:"location"`
	Department struct {
		Label string `json:"label"`
	} `json:"department"`
}

func Slug(c domain.CompanyConfig) string {
	return util.BoardToken(c, "smartrecruiters.com")
}

func (e *Extractor) Extract(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
	slug := Slug(c)
	if slug == "" {
		return nil, &util.ConfigError{Company: c.Name, Field: "board_token", Reason: "is required for smartrecruiters"}
	}
	base := fmt.Sprintf("%s/v1/companies/%s/postings", e.apiBase, url.PathEscape(slug))
	source := "smartrecruiters:" + slug

	var out []domain.RawPosting
	skipped := 0
	for offset := 0; offset <= maxOffset; offset += pageSize {
		u := fmt.Sprintf("%s?limit=%d&offset=%d", base, pageSize, offset)

		var pr postingsResponse
		if err := e.client.GetJSON(ctx, u, source, &pr); err != nil {
			if len(out) > 0 && util.Classify(err) == domain.ErrorParse {
				// later page was unreadable; keep what the earlier pages gave us
				return out, &util.ParseError{Source: source, Reason: fmt.Sprintf("page at offset %d failed", offset), Err: err}
			}
			return nil, fmt.Errorf("smartrecruiters get: %w", err)
		}
		if len(pr.Content) == 0 {
			break
		}

		for _, p := range pr.Content {
			title := util.CleanText(p.Name)
			id := strings.TrimSpace(firstNonEmpty(p.ID, p.UUID, p.Ref))
			if title == "" || id == "" {
				skipped++
				continue
			}
			jobURL := fmt.Sprintf("%s/%s/%s", e.jobsBase, slug, id)

			loc := util.NormalizeLocation(strings.Join(nonEmpty(p.Location.City, p.Location.Region, p.Location.Country), ", "))
			mode := util.InferWorkModeFromText(loc, title, "")
			if p.Location.Remote {
				mode = "Remote"
			}

			var postedAt *time.Time
			if !p.ReleasedDate.IsZero() {
				t := p.ReleasedDate
				postedAt = &t
			}

			out = append(out, domain.RawPosting{
				Company:    c.Name,
				Tier:       c.Tier,
				Title:      title,
				Location:   loc,
				WorkMode:   mode,
				URL:        jobURL,
				Department: util.CleanText(p.Department.Label),
				PostedAt:   postedAt,
				SourceID:   util.SourceID(domain.KindSmartRecruiters, slug, id, jobURL),
			})
		}

		if pr.TotalFound > 0 && offset+pageSize >= pr.TotalFound {
			break
		}
	}

	if skipped > 0 {
		return out, &util.ParseError{Source: source, Reason: "postings without name or id", Skipped: skipped}
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(vals ...string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
