package lever

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/logger"
	"gradscout-engine/internal/scrape/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postingsJSON = `[
  {
    "id": "a1",
    "text": "Software Engineer - New Grad",
    "hostedUrl": "{{base}}/plaid/a1",
    "createdAt": 1756728000000,
    "categories": {"location": "San Francisco, CA", "team": "Engineering", "commitment": "Full-time"},
    "workplaceType": "hybrid",
    "descriptionPlain": "Build payments infrastructure."
  },
  {
    "id": "b2",
    "text": "Data Analyst",
    "hostedUrl": "{{base}}/plaid/b2",
    "categories": {"location": ""},
    "description": "<p>SQL and <b>dashboards</b></p>"
  },
  {
    "id": "c3",
    "text": "",
    "hostedUrl": "{{base}}/plaid/c3"
  }
]`

const hostedPage = `<html><body>
<div class="posting-categories"><div class="location">New York, NY</div></div>
</body></html>`

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v0/postings/plaid", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("mode"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(strings.ReplaceAll(postingsJSON, "{{base}}", srv.URL)))
	})
	mux.HandleFunc("/plaid/b2", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		_, _ = w.Write([]byte(hostedPage))
	})
	mux.HandleFunc("/v0/postings/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newExtractor(srv *httptest.Server, opts ...Option) *Extractor {
	c := util.NewClient(srv.Client(), nil,
		util.WithRetry(util.RetryPolicy{MaxAttempts: 1, Initial: time.Millisecond, Max: time.Millisecond}))
	opts = append([]Option{WithAPIBase(srv.URL), WithLogger(logger.Discard())}, opts...)
	return New(c, opts...)
}

func company() domain.CompanyConfig {
	return domain.CompanyConfig{
		Name:       "Plaid",
		Tier:       domain.TierFintechAndCrypto,
		CareersURL: "https://jobs.lever.co/plaid",
		Extractor:  domain.KindLever,
	}
}

func TestExtract_MapsPostings(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)

	got, err := newExtractor(srv).Extract(context.Background(), company())

	var pe *util.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Skipped)
	require.Len(t, got, 2)

	a := got[0]
	assert.Equal(t, "Software Engineer - New Grad", a.Title)
	assert.Equal(t, "San Francisco, CA", a.Location)
	assert.Equal(t, "Hybrid", a.WorkMode)
	assert.Equal(t, "Engineering", a.Department)
	assert.Equal(t, "Build payments infrastructure.", a.Description)
	assert.Equal(t, "lever:plaid:a1", a.SourceID)
	require.NotNil(t, a.PostedAt)
	assert.Equal(t, time.UnixMilli(1756728000000).UTC(), *a.PostedAt)

	b := got[1]
	assert.Equal(t, "SQL and dashboards", b.Description)
	assert.Nil(t, b.PostedAt)
	// empty location filled from the hosted page
	assert.Equal(t, "New York, NY", b.Location)
	assert.Equal(t, int32(1), hits.Load())
}

func TestExtract_WithoutHydrate(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)

	got, _ := newExtractor(srv, WithHydrate(false)).Extract(context.Background(), company())
	require.Len(t, got, 2)
	assert.Empty(t, got[1].Location)
	assert.Equal(t, int32(0), hits.Load())
}

func TestExtract_MissingBoardIsNetwork(t *testing.T) {
	srv := newServer(t, nil)
	c := company()
	c.BoardToken = "gone"

	got, err := newExtractor(srv).Extract(context.Background(), c)
	assert.Nil(t, got)
	assert.Equal(t, domain.ErrorNetwork, util.Classify(err))
	assert.True(t, util.IsStatus(err, http.StatusNotFound))
}

func TestExtract_MissingSlug(t *testing.T) {
	e := New(util.NewClient(nil, nil))
	_, err := e.Extract(context.Background(), domain.CompanyConfig{Name: "X", CareersURL: "https://x.com/jobs"})
	assert.Equal(t, domain.ErrorConfig, util.Classify(err))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "plaid", Slug(company()))
	assert.Equal(t, "override", Slug(domain.CompanyConfig{BoardToken: "override", CareersURL: "https://jobs.lever.co/plaid"}))
}
