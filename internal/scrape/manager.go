package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/rank"
	"gradscout-engine/internal/scrape/util"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var ErrNoCompanies = errors.New("no companies to scrape")

const (
	DefaultConcurrency = 5

	// how long Run waits for workers to notice cancellation after a freeze
	shutdownGrace = 2 * time.Second
)

type Options struct {
	Concurrency    int
	CompanyTimeout time.Duration
	RunTimeout     time.Duration

	// OnRunStarted is called once the run ID is known, before any company
	// result is reported.
	OnRunStarted func(runID string, companies int)

	// OnCompanyDone is called once per company, from a single goroutine, as soon
	// as its result is final.
	OnCompanyDone func(domain.CompanyResult)
}

// Manager runs every company through its extractor on a bounded worker pool and
// gathers one CompanyResult per company. A failing company never stops the others.
type Manager struct {
	reg  *Registry
	cls  rank.Classifier
	opts Options
	log  *slog.Logger
}

func NewManager(reg *Registry, cls rank.Classifier, opts Options, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{reg: reg, cls: cls, opts: opts, log: log}
}

type outcome struct {
	idx    int
	result domain.CompanyResult
}

// Run scrapes companies with at most concurrency extractions in flight
// (concurrency <= 0 falls back to Options.Concurrency, then 5). Companies keep
// their input order in the result. When the run deadline passes, results that
// already arrived are kept and every other company is reported as failed with
// a timeout.
func (m *Manager) Run(ctx context.Context, companies []domain.CompanyConfig, concurrency int) (*domain.JobSearchResult, error) {
	if len(companies) == 0 {
		return nil, ErrNoCompanies
	}
	if concurrency <= 0 {
		concurrency = m.opts.Concurrency
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	res := &domain.JobSearchResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Companies: make([]domain.CompanyResult, len(companies)),
	}
	log := m.log.With("run_id", res.RunID)
	log.Info("[scrape] run started", "companies", len(companies), "concurrency", concurrency)
	if m.opts.OnRunStarted != nil {
		m.opts.OnRunStarted(res.RunID, len(companies))
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if m.opts.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, m.opts.RunTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	filled := make([]bool, len(companies))
	set := func(i int, r domain.CompanyResult) {
		if filled[i] {
			return
		}
		filled[i] = true
		res.Companies[i] = r
		if m.opts.OnCompanyDone != nil {
			m.opts.OnCompanyDone(r)
		}
	}

	var queue []int
	for i, c := range companies {
		if err := m.reg.Validate(c); err != nil {
			log.Warn("[scrape] invalid company config", "company", c.Name, "err", err)
			set(i, failed(c, err, 0))
			continue
		}
		queue = append(queue, i)
	}

	work := make(chan int, len(queue))
	for _, i := range queue {
		work <- i
	}
	close(work)

	// buffered for every company so a worker never blocks after a freeze
	outcomes := make(chan outcome, len(companies))

	g, gctx := errgroup.WithContext(runCtx)
	for w := 0; w < min(concurrency, len(queue)); w++ {
		g.Go(func() error {
			for i := range work {
				if gctx.Err() != nil {
					return nil
				}
				outcomes <- outcome{idx: i, result: m.scrapeOne(gctx, companies[i])}
			}
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	remaining := len(queue)
collect:
	for remaining > 0 {
		select {
		case o := <-outcomes:
			set(o.idx, o.result)
			remaining--
		case <-runCtx.Done():
			break collect
		}
	}

	if remaining > 0 {
		// keep whatever was delivered before the deadline, then freeze
	drain:
		for {
			select {
			case o := <-outcomes:
				set(o.idx, o.result)
			default:
				break drain
			}
		}
		for i, c := range companies {
			if !filled[i] {
				set(i, failed(c, util.ErrTimeout, 0))
			}
		}
		log.Warn("[scrape] run deadline reached", "err", runCtx.Err())
		cancel()
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			log.Warn("[scrape] workers still busy after cancel; abandoning them")
		}
	} else {
		<-done
	}

	res.FinishedAt = time.Now().UTC()
	res.Summary = domain.Summarize(res.Companies)
	log.Info("[scrape] run finished",
		"jobs", res.Summary.TotalJobs,
		"succeeded", res.Summary.Succeeded,
		"partial", res.Summary.Partial,
		"failed", res.Summary.Failed,
		"took", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	return res, nil
}

// scrapeOne extracts and classifies a single company. Panics inside an extractor
// become internal failures.
func (m *Manager) scrapeOne(ctx context.Context, c domain.CompanyConfig) (r domain.CompanyResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			m.log.Error("[scrape] extractor panic", "company", c.Name, "panic", p, "stack", string(debug.Stack()))
			r = failed(c, fmt.Errorf("extractor panic: %v", p), time.Since(start))
		}
	}()

	ext, _ := m.reg.Get(c.Extractor)

	cctx := ctx
	if m.opts.CompanyTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, m.opts.CompanyTimeout)
		defer cancel()
	}
	cctx = util.WithMinInterval(cctx, c.RequestDelay)

	postings, err := ext.Extract(cctx, c)
	took := time.Since(start)
	kind := util.Classify(err)

	switch {
	case err == nil:
		r = domain.CompanyResult{Status: domain.StatusSuccess}
	case kind == domain.ErrorParse && len(postings) > 0:
		r = domain.CompanyResult{Status: domain.StatusPartial, ErrorKind: kind, Error: err.Error()}
	default:
		m.log.Warn("[scrape] company failed", "company", c.Name, "kind", kind, "err", err)
		return failed(c, err, took)
	}

	r.Company = c.Name
	r.Tier = c.Tier
	r.Extractor = c.Extractor
	r.Duration = took
	r.Jobs = make([]domain.ScoredJob, 0, len(postings))
	for _, p := range postings {
		p.Company = c.Name
		p.Tier = c.Tier
		r.Jobs = append(r.Jobs, m.cls.Classify(p))
	}
	domain.SortJobs(r.Jobs)

	m.log.Info("[scrape] company done", "company", c.Name, "status", r.Status, "jobs", len(r.Jobs), "took", took.Round(time.Millisecond))
	return r
}

func failed(c domain.CompanyConfig, err error, took time.Duration) domain.CompanyResult {
	kind := util.Classify(err)
	msg := err.Error()
	if kind == domain.ErrorTimeout {
		msg = "timeout"
	}
	return domain.CompanyResult{
		Company:   c.Name,
		Tier:      c.Tier,
		Extractor: c.Extractor,
		Status:    domain.StatusFailed,
		ErrorKind: kind,
		Error:     msg,
		Jobs:      []domain.ScoredJob{},
		Duration:  took,
	}
}
