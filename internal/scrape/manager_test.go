package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gradscout-engine/internal/config"
	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/logger"
	"gradscout-engine/internal/rank"
	"gradscout-engine/internal/scrape/generic"
	"gradscout-engine/internal/scrape/greenhouse"
	"gradscout-engine/internal/scrape/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type extractFunc func(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error)

// fakeExtractor dispatches on company name so one registry can serve every case.
type fakeExtractor struct {
	kind domain.ExtractorKind
	fns  map[string]extractFunc
}

func (f *fakeExtractor) Kind() domain.ExtractorKind { return f.kind }

func (f *fakeExtractor) Extract(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
	if fn, ok := f.fns[c.Name]; ok {
		return fn(ctx, c)
	}
	return postings(c.Name, 1), nil
}

type fixedClassifier struct{}

func (fixedClassifier) Classify(p domain.RawPosting) domain.ScoredJob {
	return domain.ScoredJob{RawPosting: p, Category: domain.CategorySoftwareEngineering, Score: 0.5, RawScore: 0.5, LocationOK: true}
}

func postings(company string, n int) []domain.RawPosting {
	out := make([]domain.RawPosting, n)
	for i := range out {
		out[i] = domain.RawPosting{
			Title:    "Software Engineer",
			URL:      "https://example.com/" + company + "/" + string(rune('a'+i)),
			SourceID: company + string(rune('a'+i)),
		}
	}
	return out
}

func board(name string) domain.CompanyConfig {
	return domain.CompanyConfig{Name: name, Tier: domain.TierBigTech, Extractor: domain.KindGreenhouse, BoardToken: name}
}

func newManager(fns map[string]extractFunc, opts Options) *Manager {
	reg := NewRegistry(&fakeExtractor{kind: domain.KindGreenhouse, fns: fns})
	return NewManager(reg, fixedClassifier{}, opts, logger.Discard())
}

func TestRun_KeepsInputOrder(t *testing.T) {
	fns := map[string]extractFunc{
		"slow": func(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
			time.Sleep(30 * time.Millisecond)
			return postings(c.Name, 2), nil
		},
	}
	m := newManager(fns, Options{})

	res, err := m.Run(context.Background(), []domain.CompanyConfig{board("slow"), board("fast"), board("mid")}, 2)
	require.NoError(t, err)
	require.Len(t, res.Companies, 3)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "slow", res.Companies[0].Company)
	assert.Equal(t, "fast", res.Companies[1].Company)
	assert.Equal(t, "mid", res.Companies[2].Company)
	for _, c := range res.Companies {
		assert.Equal(t, domain.StatusSuccess, c.Status)
		for _, j := range c.Jobs {
			assert.Equal(t, c.Company, j.Company)
			assert.Equal(t, domain.TierBigTech, j.Tier)
		}
	}
	assert.Equal(t, 4, res.Summary.TotalJobs)
	assert.Equal(t, 3, res.Summary.Succeeded)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestRun_FailuresAreIsolated(t *testing.T) {
	fns := map[string]extractFunc{
		"drifted": func(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
			return postings(c.Name, 2), &util.ParseError{Source: "x", Reason: "skipped", Skipped: 1}
		},
		"empty-drift": func(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
			return nil, &util.ParseError{Source: "x", Reason: "no listings"}
		},
		"down": func(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
			return postings(c.Name, 3), &util.NetworkError{URL: "https://x", StatusCode: 502}
		},
		"boom": func(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
			panic("nil map")
		},
	}
	m := newManager(fns, Options{})

	bad := board("misconfigured")
	bad.BoardToken = ""

	res, err := m.Run(context.Background(), []domain.CompanyConfig{
		board("ok"), board("drifted"), board("empty-drift"), board("down"), board("boom"), bad,
	}, 3)
	require.NoError(t, err)

	byName := map[string]domain.CompanyResult{}
	for _, c := range res.Companies {
		byName[c.Company] = c
	}

	assert.Equal(t, domain.StatusSuccess, byName["ok"].Status)

	assert.Equal(t, domain.StatusPartial, byName["drifted"].Status)
	assert.Equal(t, domain.ErrorParse, byName["drifted"].ErrorKind)
	assert.Len(t, byName["drifted"].Jobs, 2)

	assert.Equal(t, domain.StatusFailed, byName["empty-drift"].Status)
	assert.Equal(t, domain.ErrorParse, byName["empty-drift"].ErrorKind)

	// network failures discard anything salvaged
	assert.Equal(t, domain.StatusFailed, byName["down"].Status)
	assert.Equal(t, domain.ErrorNetwork, byName["down"].ErrorKind)
	assert.Empty(t, byName["down"].Jobs)

	assert.Equal(t, domain.StatusFailed, byName["boom"].Status)
	assert.Equal(t, domain.ErrorInternal, byName["boom"].ErrorKind)

	assert.Equal(t, domain.StatusFailed, byName["misconfigured"].Status)
	assert.Equal(t, domain.ErrorConfig, byName["misconfigured"].ErrorKind)

	assert.Equal(t, 1, res.Summary.Succeeded)
	assert.Equal(t, 1, res.Summary.Partial)
	assert.Equal(t, 4, res.Summary.Failed)
	assert.Len(t, res.Summary.Errors, 5)
}

func TestRun_DeadlineFreezesResults(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	fns := map[string]extractFunc{
		"stuck": func(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
				return postings(c.Name, 1), nil
			}
		},
	}
	m := newManager(fns, Options{RunTimeout: 80 * time.Millisecond})

	start := time.Now()
	res, err := m.Run(context.Background(), []domain.CompanyConfig{board("quick"), board("stuck")}, 2)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, domain.StatusSuccess, res.Companies[0].Status)
	stuck := res.Companies[1]
	assert.Equal(t, domain.StatusFailed, stuck.Status)
	assert.Equal(t, domain.ErrorTimeout, stuck.ErrorKind)
	assert.Equal(t, "failed: timeout", stuck.Cause())
}

func TestRun_CompanyTimeout(t *testing.T) {
	fns := map[string]extractFunc{
		"slow": func(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	m := newManager(fns, Options{CompanyTimeout: 20 * time.Millisecond})

	res, err := m.Run(context.Background(), []domain.CompanyConfig{board("slow"), board("fine")}, 1)
	require.NoError(t, err)
	assert.Equal(t, "failed: timeout", res.Companies[0].Cause())
	assert.Equal(t, domain.StatusSuccess, res.Companies[1].Status)
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := func(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		inFlight.Add(-1)
		return postings(c.Name, 1), nil
	}

	fns := map[string]extractFunc{}
	var companies []domain.CompanyConfig
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		fns[name] = slow
		companies = append(companies, board(name))
	}

	res, err := newManager(fns, Options{}).Run(context.Background(), companies, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Summary.Succeeded)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRun_Hooks(t *testing.T) {
	var (
		mu      sync.Mutex
		started string
		count   int
		done    []string
	)
	opts := Options{
		OnRunStarted: func(runID string, companies int) {
			mu.Lock()
			defer mu.Unlock()
			started = runID
			count = companies
		},
		OnCompanyDone: func(r domain.CompanyResult) {
			mu.Lock()
			defer mu.Unlock()
			done = append(done, r.Company)
		},
	}
	res, err := newManager(nil, opts).Run(context.Background(), []domain.CompanyConfig{board("x"), board("y")}, 2)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, res.RunID, started)
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t, []string{"x", "y"}, done)
}

func TestRun_NoCompanies(t *testing.T) {
	_, err := newManager(nil, Options{}).Run(context.Background(), nil, 2)
	assert.True(t, errors.Is(err, ErrNoCompanies))
}

func TestRegistry_Validate(t *testing.T) {
	reg := DefaultRegistry(util.NewClient(nil, nil), logger.Discard())

	generic := func() domain.CompanyConfig {
		return domain.CompanyConfig{
			Name:       "Acme",
			Tier:       domain.TierBigTech,
			CareersURL: "https://acme.example/careers",
			Extractor:  domain.KindGeneric,
			Selectors:  domain.Selectors{Title: "h3", Link: "a"},
		}
	}

	require.NoError(t, reg.Validate(generic()))

	cases := []struct {
		name  string
		edit  func(*domain.CompanyConfig)
		field string
	}{
		{"missing name", func(c *domain.CompanyConfig) { c.Name = " " }, "name"},
		{"unknown tier", func(c *domain.CompanyConfig) { c.Tier = "unicorns" }, "tier"},
		{"unknown extractor", func(c *domain.CompanyConfig) { c.Extractor = "workday" }, "extractor"},
		{"relative url", func(c *domain.CompanyConfig) { c.CareersURL = "/careers" }, "careers_url"},
		{"bad selector", func(c *domain.CompanyConfig) { c.Selectors.Title = "h3[" }, "selectors.job_title"},
		{"pages without param", func(c *domain.CompanyConfig) { c.MaxPages = 3 }, "page_param"},
		{"negative limit", func(c *domain.CompanyConfig) { c.MaxListings = -1 }, "limits"},
		{"greenhouse without token", func(c *domain.CompanyConfig) { c.Extractor = domain.KindGreenhouse }, "board_token"},
		{"lever without slug", func(c *domain.CompanyConfig) { c.Extractor = domain.KindLever }, "board_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := generic()
			tc.edit(&c)
			err := reg.Validate(c)
			var ce *util.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.field, ce.Field)
		})
	}

	lever := generic()
	lever.Extractor = domain.KindLever
	lever.CareersURL = "https://jobs.lever.co/plaid"
	assert.NoError(t, reg.Validate(lever))
}

// careersPage renders a generic listing with one li.job per title.
func careersPage(prefix string, titles ...string) string {
	body := "<html><body><ul>"
	for i, t := range titles {
		body += fmt.Sprintf(`<li class="job"><h3><a href="/%s/jobs/%d">%s</a></h3><span class="loc">Austin, TX</span></li>`, prefix, i+1, t)
	}
	return body + "</ul></body></html>"
}

const greenhouseBoard = `{"jobs": [{
  "id": 9001,
  "title": "Software Engineer, New Grad 2026",
  "absolute_url": "https://boards.greenhouse.io/gco/jobs/9001",
  "location": {"name": "New York, NY"}
}]}`

// newSiteManager wires the real generic and greenhouse extractors and the
// default matcher against srv.
func newSiteManager(srv *httptest.Server) *Manager {
	client := util.NewClient(srv.Client(), util.NewHostLimiter(time.Millisecond, 0),
		util.WithRetry(util.RetryPolicy{MaxAttempts: 2, Initial: time.Millisecond, Max: 2 * time.Millisecond}))
	reg := NewRegistry(
		generic.New(client, logger.Discard()),
		greenhouse.New(client, greenhouse.WithBaseURLs(srv.URL, srv.URL), greenhouse.WithLogger(logger.Discard())),
	)
	return NewManager(reg, rank.NewMatcher(config.DefaultJobTypes(), nil), Options{}, logger.Discard())
}

func genericSite(name, url string) domain.CompanyConfig {
	return domain.CompanyConfig{
		Name:       name,
		Tier:       domain.TierBigTech,
		CareersURL: url,
		Extractor:  domain.KindGeneric,
		Selectors:  domain.Selectors{Title: "h3", Link: "a", Location: ".loc"},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a/careers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(careersPage("a", "Software Engineer, New Grad", "Data Scientist")))
	})
	mux.HandleFunc("/b/careers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(careersPage("b", "Machine Learning Engineer", "Backend Engineer")))
	})
	mux.HandleFunc("/v1/boards/gco/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(greenhouseBoard))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	companies := []domain.CompanyConfig{
		genericSite("Alpha", srv.URL+"/a/careers"),
		genericSite("Beta", srv.URL+"/b/careers"),
		{Name: "Gco", Tier: domain.TierFintechAndCrypto, Extractor: domain.KindGreenhouse, BoardToken: "gco"},
	}

	res, err := newSiteManager(srv).Run(context.Background(), companies, 2)
	require.NoError(t, err)
	require.Len(t, res.Companies, 3)

	assert.Equal(t, 5, res.Summary.TotalJobs)
	assert.Equal(t, 3, res.Summary.Succeeded)
	want := map[string]int{"Alpha": 2, "Beta": 2, "Gco": 1}
	for i, c := range res.Companies {
		assert.Equal(t, companies[i].Name, c.Company)
		assert.Equal(t, domain.StatusSuccess, c.Status, c.Error)
		assert.Len(t, c.Jobs, want[c.Company])
		for _, j := range c.Jobs {
			assert.Equal(t, c.Company, j.Company)
			assert.Equal(t, companies[i].Tier, j.Tier)
		}
	}
	assert.Equal(t, "Software Engineer, New Grad 2026", res.Companies[2].Jobs[0].Title)
}

func TestRun_LaterPageOutageFailsCompany(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a/careers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(careersPage("a", "Software Engineer", "Data Scientist")))
	})
	mux.HandleFunc("/b/careers", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(careersPage("b", "Backend Engineer", "Frontend Engineer")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	paged := genericSite("Beta", srv.URL+"/b/careers")
	paged.PageParam = "page"
	paged.MaxPages = 3

	res, err := newSiteManager(srv).Run(context.Background(), []domain.CompanyConfig{
		genericSite("Alpha", srv.URL+"/a/careers"), paged,
	}, 2)
	require.NoError(t, err)
	require.Len(t, res.Companies, 2)

	assert.Equal(t, domain.StatusSuccess, res.Companies[0].Status)

	beta := res.Companies[1]
	assert.Equal(t, domain.StatusFailed, beta.Status)
	assert.Equal(t, domain.ErrorNetwork, beta.ErrorKind)
	assert.Contains(t, beta.Error, "503")
	assert.Empty(t, beta.Jobs)
}
