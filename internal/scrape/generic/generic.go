package generic

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/scrape/util"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultMaxListings = 20
	DefaultTitle       = "h3"
	DefaultLink        = "a"
)

// Extractor scrapes a careers page using the CSS selectors from the company config.
type Extractor struct {
	client *util.Client
	log    *slog.Logger
}

func New(client *util.Client, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{client: client, log: log}
}

func (e *Extractor) Kind() domain.ExtractorKind { return domain.KindGeneric }

type pageResult struct {
	postings []domain.RawPosting
	nodes    int
	skipped  int
}

func (e *Extractor) Extract(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
	if c.CareersURL == "" {
		return nil, &util.ConfigError{Company: c.Name, Field: "careers_url", Reason: "is required"}
	}
	sel := withDefaults(c.Selectors)

	maxPages := c.MaxPages
	if maxPages < 1 || c.PageParam == "" {
		maxPages = 1
	}
	limit := c.MaxListings
	if limit <= 0 {
		limit = DefaultMaxListings
	}

	var (
		out     []domain.RawPosting
		skipped int
		seen    = map[string]bool{}
	)
	source := "generic:" + c.Name

	for page := 1; page <= maxPages && len(out) < limit; page++ {
		pageURL, err := buildPageURL(c, page)
		if err != nil {
			return nil, &util.ConfigError{Company: c.Name, Field: "careers_url", Reason: err.Error()}
		}

		doc, err := e.client.GetDocument(ctx, pageURL, source)
		if err != nil {
			if page > 1 && util.IsStatus(err, http.StatusNotFound) {
				break
			}
			if len(out) > 0 && util.Classify(err) == domain.ErrorParse {
				return out, &util.ParseError{Source: source, Reason: fmt.Sprintf("page %d failed", page), Skipped: skipped, Err: err}
			}
			// network failures, and anything on page 1, fail the company
			return nil, fmt.Errorf("generic get %s: %w", pageURL, err)
		}

		res := extractPage(doc, pageURL, c, sel)
		if res.nodes == 0 {
			if page == 1 {
				return nil, &util.ParseError{Source: source, Reason: fmt.Sprintf("selector matched no listings on %s", pageURL)}
			}
			break
		}
		skipped += res.skipped

		added := 0
		for _, p := range res.postings {
			if len(out) >= limit {
				break
			}
			key := util.CanonicalizeURL(p.URL)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
			added++
		}
		if added == 0 {
			// page param ignored by the site; same listings came back
			break
		}
		e.log.Debug("[scrape:generic] page done", "company", c.Name, "page", page, "postings", added)
	}

	if skipped > 0 {
		if len(out) == 0 {
			return nil, &util.ParseError{Source: source, Reason: "no listing had both a title and a link", Skipped: skipped}
		}
		return out, &util.ParseError{Source: source, Reason: "some listings were unreadable", Skipped: skipped}
	}
	return out, nil
}

func withDefaults(s domain.Selectors) domain.Selectors {
	if s.Title == "" {
		s.Title = DefaultTitle
	}
	if s.Link == "" {
		s.Link = DefaultLink
	}
	return s
}

func buildPageURL(c domain.CompanyConfig, page int) (string, error) {
	u, err := url.Parse(c.CareersURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%q is not absolute", c.CareersURL)
	}
	q := u.Query()
	keys := make([]string, 0, len(c.SearchParams))
	for k := range c.SearchParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, c.SearchParams[k])
	}
	if page > 1 {
		q.Set(c.PageParam, strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func extractPage(doc *goquery.Document, pageURL string, c domain.CompanyConfig, sel domain.Selectors) pageResult {
	var res pageResult

	var nodes []*goquery.Selection
	if sel.Listing != "" {
		doc.Find(sel.Listing).Each(func(_ int, s *goquery.Selection) {
			nodes = append(nodes, s)
		})
	} else {
		nodes = containersFromLinks(doc, sel)
	}
	res.nodes = len(nodes)

	for _, n := range nodes {
		p, ok := postingFrom(n, pageURL, c, sel)
		if !ok {
			res.skipped++
			continue
		}
		res.postings = append(res.postings, p)
	}
	return res
}

// containersFromLinks walks up from each link match to the nearest ancestor that
// holds exactly one title, and keeps climbing while the location is still outside
// it. Links with no titled ancestor (nav, footer) are ignored.
func containersFromLinks(doc *goquery.Document, sel domain.Selectors) []*goquery.Selection {
	var out []*goquery.Selection
	claimed := map[any]bool{}

	doc.Find(sel.Link).Each(func(_ int, link *goquery.Selection) {
		var container *goquery.Selection
		for cur := link; cur.Length() > 0 && !cur.Is("body,html"); cur = cur.Parent() {
			if titles(cur, sel.Title) > 1 {
				break
			}
			if !has(cur, sel.Title) {
				continue
			}
			container = cur
			if sel.Location == "" || has(cur, sel.Location) {
				break
			}
		}
		if container == nil {
			return
		}
		if node := container.Get(0); !claimed[node] {
			claimed[node] = true
			out = append(out, container)
		}
	})
	return out
}

func titles(s *goquery.Selection, selector string) int {
	n := s.Find(selector).Length()
	if s.Is(selector) {
		n++
	}
	return n
}

func has(s *goquery.Selection, selector string) bool {
	return s.Is(selector) || s.Find(selector).Length() > 0
}

func first(s *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return s.Slice(0, 0)
	}
	if s.Is(selector) {
		return s
	}
	return s.Find(selector).First()
}

func postingFrom(n *goquery.Selection, pageURL string, c domain.CompanyConfig, sel domain.Selectors) (domain.RawPosting, bool) {
	title := util.CleanText(first(n, sel.Title).Text())
	if util.LooksLikeJunkTitle(title) {
		return domain.RawPosting{}, false
	}

	linkNode := first(n, sel.Link)
	href, ok := linkNode.Attr("href")
	if !ok {
		href, _ = linkNode.Find("a[href]").First().Attr("href")
	}
	link := util.ResolveURL(pageURL, href)
	if link == "" {
		return domain.RawPosting{}, false
	}

	loc := util.NormalizeLocation(first(n, sel.Location).Text())
	desc := util.CleanText(first(n, sel.Description).Text())

	return domain.RawPosting{
		Company:     c.Name,
		Tier:        c.Tier,
		Title:       title,
		Location:    loc,
		WorkMode:    util.InferWorkModeFromText(loc, title, desc),
		URL:         link,
		Description: desc,
		SourceID:    util.SourceID(domain.KindGeneric, "", "", link),
	}, true
}
