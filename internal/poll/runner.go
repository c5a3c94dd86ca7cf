package poll

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"gradscout-engine/internal/config"
	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/events"
	"gradscout-engine/internal/rank"
	"gradscout-engine/internal/scrape"
	"gradscout-engine/internal/scrape/types"
	"gradscout-engine/internal/scrape/util"
	"gradscout-engine/internal/store"
)

var ErrAlreadyRunning = errors.New("a scrape run is already in progress")

// hostBudgetWindow is the window HostBudgetPer5m is counted over.
const hostBudgetWindow = 5 * time.Minute

// Runner owns everything one scrape run needs: the live config, the database,
// the event hub and the last run's status. It allows a single run at a time.
type Runner struct {
	db  *sql.DB // nil disables persistence
	hub *events.Hub
	log *slog.Logger

	cfg     atomic.Value // config.Config
	status  atomic.Value // types.ScrapeStatus
	running atomic.Bool

	// NewRegistry builds the extractor set for a run. Replaced in tests.
	NewRegistry func(client *util.Client, log *slog.Logger) *scrape.Registry
}

func NewRunner(db *sql.DB, cfg config.Config, hub *events.Hub, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{db: db, hub: hub, log: log, NewRegistry: scrape.DefaultRegistry}
	r.cfg.Store(cfg)
	r.status.Store(types.ScrapeStatus{})
	return r
}

func (r *Runner) Config() config.Config { return r.cfg.Load().(config.Config) }

func (r *Runner) SetConfig(cfg config.Config) { r.cfg.Store(cfg) }

func (r *Runner) Status() types.ScrapeStatus { return r.status.Load().(types.ScrapeStatus) }

func (r *Runner) Running() bool { return r.running.Load() }

func (r *Runner) updateStatus(fn func(*types.ScrapeStatus)) {
	st := r.Status()
	fn(&st)
	r.status.Store(st)
}

// RunOnce scrapes the selected companies with the current config, persists the
// result when a database is attached and publishes progress events. It returns
// the result and how many jobs had never been seen before.
func (r *Runner) RunOnce(ctx context.Context, sel config.Selection) (*domain.JobSearchResult, int, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, 0, ErrAlreadyRunning
	}
	defer r.running.Store(false)

	cfg := r.Config()
	companies := cfg.Companies.CompanyConfigs(sel)
	s := cfg.Settings.Scraping

	r.updateStatus(func(st *types.ScrapeStatus) {
		st.Running = true
		st.LastRunAt = time.Now().Format(time.RFC3339)
	})

	res, added, err := r.run(ctx, cfg, companies)

	r.updateStatus(func(st *types.ScrapeStatus) {
		st.Running = false
		st.LastAdded = added
		if res != nil {
			st.LastRunID = res.RunID
		}
		if err != nil {
			st.LastError = err.Error()
			return
		}
		st.LastError = ""
		st.LastOkAt = time.Now().Format(time.RFC3339)
	})

	if err != nil {
		r.log.Error("[poll] run failed", "err", err)
		r.hub.Publish(events.RunFailed("", err))
		return res, added, err
	}
	r.log.Info("[poll] run ok", "run_id", res.RunID, "jobs", res.Summary.TotalJobs, "added", added,
		"concurrency", s.Concurrency)
	return res, added, nil
}

func (r *Runner) run(ctx context.Context, cfg config.Config, companies []domain.CompanyConfig) (*domain.JobSearchResult, int, error) {
	s := cfg.Settings.Scraping

	limiter := util.NewHostLimiter(s.RateLimitDelay, s.Jitter).WithBudget(s.HostBudgetPer5m, hostBudgetWindow)
	client := util.NewClient(
		&http.Client{Timeout: s.RequestTimeout},
		limiter,
		util.WithUserAgent(s.UserAgent),
		util.WithRetry(util.RetryPolicy{MaxAttempts: s.MaxAttempts, Initial: s.BackoffInitial, Max: s.BackoffMax}),
		util.WithLogger(r.log),
	)
	matcher := rank.NewMatcher(cfg.JobTypes, rank.NewLocationFilter(cfg.Settings.Filters))

	var runID string
	mgr := scrape.NewManager(r.NewRegistry(client, r.log), matcher, scrape.Options{
		Concurrency:    s.Concurrency,
		CompanyTimeout: s.CompanyTimeout,
		RunTimeout:     s.RunTimeout,
		OnRunStarted: func(id string, n int) {
			runID = id
			r.hub.Publish(events.New(events.TypeRunStarted, id, events.RunProgress{Companies: n}))
		},
		OnCompanyDone: func(c domain.CompanyResult) {
			r.hub.Publish(events.CompanyDone(runID, c))
		},
	}, r.log)

	res, err := mgr.Run(ctx, companies, s.Concurrency)
	if err != nil {
		return nil, 0, err
	}

	added := 0
	if r.db != nil {
		// a cancelled run still gets recorded
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
		defer cancel()

		added, err = store.SaveRun(saveCtx, r.db, res)
		if err != nil {
			return res, 0, fmt.Errorf("save run: %w", err)
		}
		if n, err := store.CleanupOldJobs(saveCtx, r.db, cfg.Settings.App.JobRetention); err != nil {
			r.log.Warn("[poll] cleanup failed", "err", err)
		} else if n > 0 {
			r.log.Info("[poll] removed stale jobs", "deleted", n)
		}
	}

	r.hub.Publish(events.RunFinished(res, added))
	return res, added, nil
}
