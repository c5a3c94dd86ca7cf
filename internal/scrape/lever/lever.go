package lever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/scrape/util"
)

const DefaultAPIBase = "https://api.lever.co"

type Extractor struct {
	client  *util.Client
	apiBase string
	hydrate bool
	log     *slog.Logger
}

type Option func(*Extractor)

func WithAPIBase(base string) Option {
	return func(e *Extractor) {
		if base != "" {
			e.apiBase = strings.TrimRight(base, "/")
		}
	}
}

// WithHydrate toggles fetching hosted pages for postings that have no location.
func WithHydrate(on bool) Option {
	return func(e *Extractor) { e.hydrate = on }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

func New(client *util.Client, opts ...Option) *Extractor {
	e := &Extractor{
		client:  client,
		apiBase: DefaultAPIBase,
		hydrate: true,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Extractor) Kind() domain.ExtractorKind { return domain.KindLever }

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"` // title
	HostedURL  string `json:"hostedUrl"`
	CreatedAt  int64  `json:"createdAt"` // ms epoch
	Categories struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	WorkplaceType    string `json:"workplaceType"`
	DescriptionPlain string `json:"descriptionPlain"`
	Description      string `json:"description"` // html
}

func Slug(c domain.CompanyConfig) string {
	return util.BoardToken(c, "lever.co")
}

func (e *Extractor) Extract(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
	slug := Slug(c)
	if slug == "" {
		return nil, &util.ConfigError{Company: c.Name, Field: "board_token", Reason: "is required for lever"}
	}

	apiURL := fmt.Sprintf("%s/v0/postings/%s?mode=json", e.apiBase, url.PathEscape(slug))

	var postings []leverPosting
	if err := e.client.GetJSON(ctx, apiURL, "lever:"+slug, &postings); err != nil {
		return nil, fmt.Errorf("lever get: %w", err)
	}

	out := make([]domain.RawPosting, 0, len(postings))
	skipped := 0
	for _, p := range postings {
		title := util.CleanText(p.Text)
		if p.HostedURL == "" || title == "" {
			skipped++
			continue
		}
		var postedAt *time.Time
		if p.CreatedAt > 0 {
			t := time.UnixMilli(p.CreatedAt).UTC()
			postedAt = &t
		}
		desc := util.CleanText(p.DescriptionPlain)
		if desc == "" {
			desc = util.TextFromHTML(p.Description)
		}
		loc := util.NormalizeLocation(p.Categories.Location)
		mode := util.InferWorkModeFromText(loc+" "+p.WorkplaceType, title, "")

		out = append(out, domain.RawPosting{
			Company:     c.Name,
			Tier:        c.Tier,
			Title:       title,
			Location:    loc,
			WorkMode:    mode,
			URL:         p.HostedURL,
			Description: desc,
			Department:  util.CleanText(p.Categories.Team),
			PostedAt:    postedAt,
			SourceID:    util.SourceID(domain.KindLever, slug, p.ID, p.HostedURL),
		})
	}

	if e.hydrate {
		for i := range out {
			if out[i].Location != "" {
				continue
			}
			if err := e.hydrateJob(ctx, &out[i]); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break
				}
				e.log.Debug("[ats:lever] hydrate failed", "company", c.Name, "url", out[i].URL, "err", err)
			}
		}
	}

	if skipped > 0 {
		return out, &util.ParseError{Source: "lever:" + slug, Reason: "postings without title or hostedUrl", Skipped: skipped}
	}
	return out, nil
}

// hydrateJob fills the location from the hosted posting page. Failures leave the
// posting as it was.
func (e *Extractor) hydrateJob(ctx context.Context, j *domain.RawPosting) error {
	doc, err := e.client.GetDocument(ctx, j.URL, "lever-page")
	if err != nil {
		return err
	}
	if loc := util.FindLocation(doc); loc != "" {
		j.Location = loc
	}
	if j.WorkMode == "" || j.WorkMode == "Unknown" {
		j.WorkMode = util.InferWorkModeFromText(j.Location, j.Title, "")
	}
	return nil
}
