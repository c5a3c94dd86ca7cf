package generic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/logger"
	"gradscout-engine/internal/scrape/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listPage = `<html><body>
<nav><a href="/">Home</a></nav>
<ul>
  <li class="job"><h3><a href="/jobs/1?utm_source=board">Software Engineer, New Grad</a></h3><span class="loc">San Francisco, CA</span></li>
  <li class="job"><h3><a href="/jobs/2">Data Scientist</a></h3><span class="loc">Remote</span></li>
</ul>
<footer><a href="/about">About us</a></footer>
</body></html>`

const driftedPage = `<html><body><div class="new-layout"><p>Nothing here</p></div></body></html>`

func newExtractor(srv *httptest.Server) *Extractor {
	c := util.NewClient(srv.Client(), nil,
		util.WithRetry(util.RetryPolicy{MaxAttempts: 2, Initial: time.Millisecond, Max: 2 * time.Millisecond}))
	return New(c, logger.Discard())
}

func serve(pages map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		body, ok := pages[page]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
}

func company(url string) domain.CompanyConfig {
	return domain.CompanyConfig{
		Name:       "Acme",
		Tier:       domain.TierBigTech,
		CareersURL: url + "/careers",
		Extractor:  domain.KindGeneric,
		Selectors:  domain.Selectors{Title: "h3", Link: "a", Location: ".loc"},
	}
}

func TestExtract_WalksUpFromLinks(t *testing.T) {
	srv := serve(map[string]string{"": listPage})
	defer srv.Close()

	got, err := newExtractor(srv).Extract(context.Background(), company(srv.URL))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Software Engineer, New Grad", got[0].Title)
	assert.Equal(t, srv.URL+"/jobs/1?utm_source=board", got[0].URL)
	assert.Equal(t, "San Francisco, CA", got[0].Location)
	assert.Equal(t, "Acme", got[0].Company)
	assert.Equal(t, domain.TierBigTech, got[0].Tier)
	assert.Contains(t, got[0].SourceID, "generic:url:")

	assert.Equal(t, "Data Scientist", got[1].Title)
	assert.Equal(t, "Remote", got[1].WorkMode)
}

func TestExtract_ListingSelector(t *testing.T) {
	srv := serve(map[string]string{"": listPage})
	defer srv.Close()

	c := company(srv.URL)
	c.Selectors.Listing = "li.job"
	got, err := newExtractor(srv).Extract(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestExtract_SelectorDriftIsParseError(t *testing.T) {
	srv := serve(map[string]string{"": driftedPage})
	defer srv.Close()

	got, err := newExtractor(srv).Extract(context.Background(), company(srv.URL))
	assert.Empty(t, got)

	var pe *util.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.ErrorParse, util.Classify(err))
}

func TestExtract_SkippedListingsArePartial(t *testing.T) {
	page := `<ul>
  <li class="job"><h3><a href="/jobs/1">Software Engineer</a></h3></li>
  <li class="job"><h3></h3><a href="/jobs/2">Apply</a></li>
  <li class="job"><h3>Backend Engineer</h3></li>
</ul>`
	srv := serve(map[string]string{"": page})
	defer srv.Close()

	c := company(srv.URL)
	c.Selectors.Listing = "li.job"
	got, err := newExtractor(srv).Extract(context.Background(), c)

	require.Len(t, got, 1)
	assert.Equal(t, "Software Engineer", got[0].Title)

	var pe *util.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Skipped)
}

func TestExtract_Pagination(t *testing.T) {
	page2 := `<ul><li class="job"><h3><a href="/jobs/3">ML Engineer</a></h3><span class="loc">Seattle, WA</span></li></ul>`
	var (
		mu      sync.Mutex
		queries []string
	)
	pages := map[string]string{"": listPage, "2": page2, "3": driftedPage}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.RawQuery)
		mu.Unlock()
		body, ok := pages[r.URL.Query().Get("page")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := company(srv.URL)
	c.PageParam = "page"
	c.MaxPages = 5
	c.SearchParams = map[string]string{"q": "new grad", "dept": "eng"}

	got, err := newExtractor(srv).Extract(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "ML Engineer", got[2].Title)

	mu.Lock()
	defer mu.Unlock()
	// page 3 had no listings, so paging stopped there
	assert.Equal(t, []string{
		"dept=eng&q=new+grad",
		"dept=eng&page=2&q=new+grad",
		"dept=eng&page=3&q=new+grad",
	}, queries)
}

func TestExtract_LaterPageNotFoundEndsPaging(t *testing.T) {
	srv := serve(map[string]string{"": listPage})
	defer srv.Close()

	c := company(srv.URL)
	c.PageParam = "page"
	c.MaxPages = 3

	got, err := newExtractor(srv).Extract(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestExtract_LaterPageOutageIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(listPage))
	}))
	defer srv.Close()

	c := company(srv.URL)
	c.PageParam = "page"
	c.MaxPages = 3

	got, err := newExtractor(srv).Extract(context.Background(), c)
	assert.Nil(t, got)
	assert.Equal(t, domain.ErrorNetwork, util.Classify(err))
	assert.True(t, util.IsStatus(err, http.StatusServiceUnavailable))
}

func TestExtract_FirstPageNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	got, err := newExtractor(srv).Extract(context.Background(), company(srv.URL))
	assert.Nil(t, got)
	assert.Equal(t, domain.ErrorNetwork, util.Classify(err))
}

func TestExtract_MaxListings(t *testing.T) {
	srv := serve(map[string]string{"": listPage})
	defer srv.Close()

	c := company(srv.URL)
	c.MaxListings = 1
	got, err := newExtractor(srv).Extract(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestExtract_MissingCareersURL(t *testing.T) {
	e := New(util.NewClient(nil, nil), logger.Discard())
	_, err := e.Extract(context.Background(), domain.CompanyConfig{Name: "Acme"})
	assert.Equal(t, domain.ErrorConfig, util.Classify(err))
}
