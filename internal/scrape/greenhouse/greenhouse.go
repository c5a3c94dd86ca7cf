package greenhouse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/scrape/util"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultAPIBase   = "https://boards-api.greenhouse.io"
	DefaultBoardBase = "https://boards.greenhouse.io"
)

type Extractor struct {
	client    *util.Client
	apiBase   string
	boardBase string
	log       *slog.Logger
}

type Option func(*Extractor)

// WithBaseURLs points the extractor at another API/board host (tests use httptest).
func WithBaseURLs(api, board string) Option {
	return func(e *Extractor) {
		if api != "" {
			e.apiBase = strings.TrimRight(api, "/")
		}
		if board != "" {
			e.boardBase = strings.TrimRight(board, "/")
		}
	}
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
		client:    client,
		apiBase:   DefaultAPIBase,
		boardBase: DefaultBoardBase,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Extractor) Kind() domain.ExtractorKind { return domain.KindGreenhouse }

type boardResponse struct {
	Jobs []job `json:"jobs"`
}

type job struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	AbsoluteURL string `json:"absolute_url"`
	UpdatedAt   string `json:"updated_at"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
	Content     string `json:"content"` // html, entity-escaped
	Departments []struct {
		Name string `json:"name"`
	} `json:"departments"`
}

// Token resolves the board token from the config: explicit token first, then
// boards.greenhouse.io/<token> or the embed form ?for=<token>.
func Token(c domain.CompanyConfig) string {
	t := util.BoardToken(c, "greenhouse.io")
	if t == "embed" {
		if u, err := url.Parse(c.CareersURL); err == nil {
			return u.Query().Get("for")
		}
	}
	return t
}

func (e *Extractor) Extract(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
	token := Token(c)
	if token == "" {
		return nil, &util.ConfigError{Company: c.Name, Field: "board_token", Reason: "is required for greenhouse"}
	}

	apiURL := fmt.Sprintf("%s/v1/boards/%s/jobs?content=true", e.apiBase, url.PathEscape(token))

	var br boardResponse
	err := e.client.GetJSON(ctx, apiURL, "greenhouse:"+token, &br)
	if util.IsStatus(err, http.StatusNotFound) {
		e.log.Info("[ats:greenhouse] api board missing, trying html board", "company", c.Name, "token", token)
		return e.extractHTML(ctx, c, token)
	}
	if err != nil {
		return nil, fmt.Errorf("greenhouse board %s: %w", token, err)
	}

	out := make([]domain.RawPosting, 0, len(br.Jobs))
	skipped := 0
	for _, j := range br.Jobs {
		title := util.CleanText(j.Title)
		if title == "" || strings.TrimSpace(j.AbsoluteURL) == "" {
			skipped++
			continue
		}
		loc := util.NormalizeLocation(j.Location.Name)
		desc := util.TextFromHTML(j.Content)

		var dept string
		if len(j.Departments) > 0 {
			dept = util.CleanText(j.Departments[0].Name)
		}

		var postedAt *time.Time
		if t, err := time.Parse(time.RFC3339, j.UpdatedAt); err == nil {
			postedAt = &t
		}

		var id string
		if j.ID > 0 {
			id = strconv.FormatInt(j.ID, 10)
		}

		out = append(out, domain.RawPosting{
			Company:     c.Name,
			Tier:        c.Tier,
			Title:       title,
			Location:    loc,
			WorkMode:    util.InferWorkModeFromText(loc, title, ""),
			URL:         strings.TrimSpace(j.AbsoluteURL),
			Description: desc,
			Department:  dept,
			PostedAt:    postedAt,
			SourceID:    util.SourceID(domain.KindGreenhouse, token, id, j.AbsoluteURL),
		})
	}

	if skipped > 0 {
		return out, &util.ParseError{Source: "greenhouse:" + token, Reason: "jobs without title or url", Skipped: skipped}
	}
	return out, nil
}

// extractHTML reads the hosted board page: one div.opening per posting.
func (e *Extractor) extractHTML(ctx context.Context, c domain.CompanyConfig, token string) ([]domain.RawPosting, error) {
	boardURL := fmt.Sprintf("%s/%s", e.boardBase, url.PathEscape(token))
	source := "greenhouse-html:" + token

	doc, err := e.client.GetDocument(ctx, boardURL, source)
	if err != nil {
		return nil, fmt.Errorf("greenhouse html board %s: %w", token, err)
	}

	openings := doc.Find("div.opening")
	if openings.Length() == 0 {
		return nil, &util.ParseError{Source: source, Reason: "no div.opening nodes on board page"}
	}

	var out []domain.RawPosting
	skipped := 0
	seen := map[string]bool{}
	openings.Each(func(_ int, s *goquery.Selection) {
		a := s.Find("a[href]").First()
		title := util.CleanText(a.Text())
		href, _ := a.Attr("href")
		link := util.ResolveURL(boardURL, href)
		if title == "" || link == "" {
			skipped++
			return
		}

		id := extractJobID(link)
		sid := util.SourceID(domain.KindGreenhouse, token, id, link)
		if seen[sid] {
			return
		}
		seen[sid] = true

		loc := util.NormalizeLocation(s.Find(".location").First().Text())
		out = append(out, domain.RawPosting{
			Company:  c.Name,
			Tier:     c.Tier,
			Title:    title,
			Location: loc,
			WorkMode: util.InferWorkModeFromText(loc, title, ""),
			URL:      link,
			SourceID: sid,
		})
	})

	if skipped > 0 {
		return out, &util.ParseError{Source: source, Reason: "openings without title or link", Skipped: skipped}
	}
	return out, nil
}

func extractJobID(u string) string {
	parts := strings.Split(u, "/jobs/")
	if len(parts) < 2 {
		return ""
	}
	tail := parts[1]
	end := 0
	for end < len(tail) && tail[end] >= '0' && tail[end] <= '9' {
		end++
	}
	return tail[:end]
}
