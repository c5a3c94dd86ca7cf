package poll

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gradscout-engine/internal/config"
	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/events"
	"gradscout-engine/internal/logger"
	"gradscout-engine/internal/scrape"
	"gradscout-engine/internal/scrape/util"
	"gradscout-engine/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boardExtractor serves two fixed postings per company, or blocks until
// release is closed.
type boardExtractor struct {
	release chan struct{}
}

func (boardExtractor) Kind() domain.ExtractorKind { return domain.KindGreenhouse }

func (b boardExtractor) Extract(ctx context.Context, c domain.CompanyConfig) ([]domain.RawPosting, error) {
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	board := strings.ToLower(c.Name)
	return []domain.RawPosting{
		{Title: "Software Engineer, New Grad", URL: "https://x/" + board + "/1", SourceID: "greenhouse:" + board + ":1"},
		{Title: "Account Executive", URL: "https://x/" + board + "/2", SourceID: "greenhouse:" + board + ":2"},
	}, nil
}

func testConfig() config.Config {
	cfg := config.Config{Settings: config.Defaults(), JobTypes: config.DefaultJobTypes()}
	cfg.JobTypes.NewGradSignals = []string{"new grad"}
	cfg.JobTypes.Categories = map[string]config.CategoryRules{
		"software_engineering": {Keywords: []config.Rule{{Tag: "swe", Weight: 1.5, Any: []string{"software engineer"}}}},
	}
	cfg.Companies = config.Companies{
		"big_tech": {
			{Name: "Stripe", CareersURL: "https://boards.greenhouse.io/stripe"},
			{Name: "Figma", CareersURL: "https://boards.greenhouse.io/figma"},
		},
	}
	return cfg
}

func newTestRunner(t *testing.T, withDB bool, ext boardExtractor) (*Runner, *events.Hub) {
	t.Helper()
	var db *sql.DB
	if withDB {
		d, err := store.OpenDataDir(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = d.Close() })
		db = d.Pool
	}
	hub := events.NewHub()
	r := NewRunner(db, testConfig(), hub, logger.Discard())
	r.NewRegistry = func(_ *util.Client, _ *slog.Logger) *scrape.Registry {
		return scrape.NewRegistry(ext)
	}
	return r, hub
}

func eventTypes(t *testing.T, ch chan []byte) []events.Type {
	t.Helper()
	var types []events.Type
	for {
		select {
		case raw := <-ch:
			var e events.Event
			require.NoError(t, json.Unmarshal(raw, &e))
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func TestRunOnce_PersistsAndPublishes(t *testing.T) {
	r, hub := newTestRunner(t, true, boardExtractor{})
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	res, added, err := r.RunOnce(context.Background(), config.Selection{})
	require.NoError(t, err)
	assert.Equal(t, 4, added)
	assert.Equal(t, 2, res.Summary.Succeeded)
	assert.Equal(t, 2, res.Summary.ByCompany["Stripe"])

	st := r.Status()
	assert.Equal(t, res.RunID, st.LastRunID)
	assert.Equal(t, 4, st.LastAdded)
	assert.Empty(t, st.LastError)
	assert.NotEmpty(t, st.LastOkAt)
	assert.False(t, r.Running())

	assert.Equal(t, []events.Type{
		events.TypeRunStarted, events.TypeCompanyDone, events.TypeCompanyDone, events.TypeRunFinished,
	}, eventTypes(t, ch))

	// same postings again are not new
	_, added, err = r.RunOnce(context.Background(), config.Selection{})
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestRunOnce_WithoutDB(t *testing.T) {
	r, _ := newTestRunner(t, false, boardExtractor{})
	res, added, err := r.RunOnce(context.Background(), config.Selection{Companies: []string{"figma"}})
	require.NoError(t, err)
	assert.Zero(t, added)
	require.Len(t, res.Companies, 1)
	assert.Equal(t, "Figma", res.Companies[0].Company)
}

func TestRunOnce_EmptySelectionFails(t *testing.T) {
	r, hub := newTestRunner(t, false, boardExtractor{})
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	_, _, err := r.RunOnce(context.Background(), config.Selection{Tiers: []string{"trading_and_finance"}})
	assert.ErrorIs(t, err, scrape.ErrNoCompanies)
	assert.Equal(t, scrape.ErrNoCompanies.Error(), r.Status().LastError)
	assert.Equal(t, []events.Type{events.TypeRunFailed}, eventTypes(t, ch))
}

func TestRunOnce_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	r, _ := newTestRunner(t, false, boardExtractor{release: release})

	done := make(chan error, 1)
	go func() {
		_, _, err := r.RunOnce(context.Background(), config.Selection{})
		done <- err
	}()
	require.Eventually(t, r.Running, time.Second, 5*time.Millisecond)

	_, _, err := r.RunOnce(context.Background(), config.Selection{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.True(t, r.Status().Running)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, r.Running())
}

func TestRunOnce_UsesLatestConfig(t *testing.T) {
	r, _ := newTestRunner(t, false, boardExtractor{})
	cfg := r.Config()
	cfg.Companies = config.Companies{"big_tech": {{Name: "Only", CareersURL: "https://boards.greenhouse.io/only"}}}
	r.SetConfig(cfg)

	res, _, err := r.RunOnce(context.Background(), config.Selection{})
	require.NoError(t, err)
	require.Len(t, res.Companies, 1)
	assert.Equal(t, "Only", res.Companies[0].Company)
}

func TestStartPoller_RunsOnStart(t *testing.T) {
	r, _ := newTestRunner(t, false, boardExtractor{})
	cfg := r.Config()
	cfg.Settings.Polling.Enabled = true
	cfg.Settings.Polling.RunOnStart = true
	cfg.Settings.Polling.Interval = time.Hour
	r.SetConfig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartPoller(ctx, r, logger.Discard())

	require.Eventually(t, func() bool { return r.Status().LastRunID != "" }, 2*time.Second, 10*time.Millisecond)
}

func TestStartPoller_Disabled(t *testing.T) {
	r, _ := newTestRunner(t, false, boardExtractor{})
	StartPoller(context.Background(), r, logger.Discard())
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, r.Status().LastRunID)
}
