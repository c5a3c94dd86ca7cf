package greenhouse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/logger"
	"gradscout-engine/internal/scrape/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boardJSON = `{
  "jobs": [
    {
      "id": 4001,
      "title": "Software Engineer, New Grad",
      "absolute_url": "https://boards.greenhouse.io/acme/jobs/4001",
      "updated_at": "2025-09-01T10:00:00-04:00",
      "location": {"name": "New York, NY"},
      "content": "&lt;p&gt;Join our &lt;strong&gt;backend&lt;/strong&gt; team.&lt;/p&gt;",
      "departments": [{"name": "Engineering"}]
    },
    {
      "id": 4002,
      "title": "Data Scientist",
      "absolute_url": "https://boards.greenhouse.io/acme/jobs/4002",
      "location": {"name": "Remote - US"}
    },
    {
      "id": 4003,
      "title": "Broken",
      "absolute_url": ""
    }
  ]
}`

const boardHTML = `<html><body>
<section class="level-0">
  <div class="opening"><a href="/legacy/jobs/77?gh_src=x">Quant Researcher</a><span class="location">Chicago, IL</span></div>
  <div class="opening"><a href="/legacy/jobs/78">ML Engineer</a><span class="location">Remote</span></div>
  <div class="opening"><a href="/legacy/jobs/77">Quant Researcher</a></div>
</section>
</body></html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/boards/acme/jobs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("content"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(boardJSON))
	})
	mux.HandleFunc("/v1/boards/legacy/jobs", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/legacy", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(boardHTML))
	})
	mux.HandleFunc("/v1/boards/flaky/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newExtractor(srv *httptest.Server) *Extractor {
	c := util.NewClient(srv.Client(), nil,
		util.WithRetry(util.RetryPolicy{MaxAttempts: 2, Initial: time.Millisecond, Max: 2 * time.Millisecond}))
	return New(c, WithBaseURLs(srv.URL, srv.URL), WithLogger(logger.Discard()))
}

func TestExtract_API(t *testing.T) {
	srv := newServer(t)
	c := domain.CompanyConfig{Name: "Acme", Tier: domain.TierDataAndAI, CareersURL: "https://boards.greenhouse.io/acme", Extractor: domain.KindGreenhouse}

	got, err := newExtractor(srv).Extract(context.Background(), c)

	// the job without a URL is skipped, which makes the result partial
	var pe *util.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Skipped)

	require.Len(t, got, 2)
	j := got[0]
	assert.Equal(t, "Software Engineer, New Grad", j.Title)
	assert.Equal(t, "New York, NY", j.Location)
	assert.Equal(t, "Join our backend team.", j.Description)
	assert.Equal(t, "Engineering", j.Department)
	assert.Equal(t, "greenhouse:acme:4001", j.SourceID)
	require.NotNil(t, j.PostedAt)
	assert.Equal(t, 2025, j.PostedAt.Year())

	assert.Equal(t, "Remote", got[1].WorkMode)
	assert.Nil(t, got[1].PostedAt)
}

func TestExtract_FallsBackToHTMLBoard(t *testing.T) {
	srv := newServer(t)
	c := domain.CompanyConfig{Name: "Legacy", Tier: domain.TierTradingAndFinance, BoardToken: "legacy", Extractor: domain.KindGreenhouse}

	got, err := newExtractor(srv).Extract(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Quant Researcher", got[0].Title)
	assert.Equal(t, srv.URL+"/legacy/jobs/77?gh_src=x", got[0].URL)
	assert.Equal(t, "Chicago, IL", got[0].Location)
	assert.Equal(t, "greenhouse:legacy:77", got[0].SourceID)
	assert.Equal(t, "ML Engineer", got[1].Title)
}

func TestExtract_ServerErrorIsNetwork(t *testing.T) {
	srv := newServer(t)
	c := domain.CompanyConfig{Name: "Flaky", Tier: domain.TierBigTech, BoardToken: "flaky", Extractor: domain.KindGreenhouse}

	got, err := newExtractor(srv).Extract(context.Background(), c)
	assert.Nil(t, got)
	assert.Equal(t, domain.ErrorNetwork, util.Classify(err))
}

func TestExtract_MissingToken(t *testing.T) {
	e := New(util.NewClient(nil, nil))
	_, err := e.Extract(context.Background(), domain.CompanyConfig{Name: "X", CareersURL: "https://x.com/careers"})
	assert.Equal(t, domain.ErrorConfig, util.Classify(err))
}

func TestToken(t *testing.T) {
	assert.Equal(t, "acme", Token(domain.CompanyConfig{CareersURL: "https://boards.greenhouse.io/acme"}))
	assert.Equal(t, "acme", Token(domain.CompanyConfig{CareersURL: "https://boards.greenhouse.io/embed/job_board?for=acme"}))
	assert.Equal(t, "tok", Token(domain.CompanyConfig{BoardToken: "tok", CareersURL: "https://x.com"}))
	assert.Empty(t, Token(domain.CompanyConfig{CareersURL: "https://x.com/careers"}))
}

func TestExtractJobID(t *testing.T) {
	assert.Equal(t, "123", extractJobID("https://boards.greenhouse.io/acme/jobs/123?gh_jid=1"))
	assert.Empty(t, extractJobID("https://boards.greenhouse.io/acme"))
}
