package util

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer gates outbound requests. HostLimiter is the real one; NoDelay is for tests.
type Pacer interface {
	WaitURL(ctx context.Context, raw string) error
}

// HostLimiter paces requests per hostname (api.lever.co, boards-api.greenhouse.io, etc).
//
// Each host has a one-slot gate that is held for the whole wait, so two callers
// for the same host queue up behind each other and every grant is at least
// minInterval after the previous one. Different hosts never share a gate.
type HostLimiter struct {
	mu sync.Mutex
	m  map[string]*hostGate

	minInterval time.Duration
	jitter      time.Duration

	budget       int
	budgetWindow time.Duration

	rnd func() float64
}

type hostGate struct {
	slot   chan struct{}
	last   time.Time // guarded by slot
	budget *rate.Limiter
}

func NewHostLimiter(minInterval, jitter time.Duration) *HostLimiter {
	if minInterval < 0 {
		minInterval = 0
	}
	if jitter < 0 {
		jitter = 0
	}
	return &HostLimiter{
		m:           make(map[string]*hostGate),
		minInterval: minInterval,
		jitter:      jitter,
		rnd:         rand.Float64,
	}
}

// WithBudget caps each host at n requests per window on top of the pacing gap.
// n <= 0 disables the budget.
func (hl *HostLimiter) WithBudget(n int, window time.Duration) *HostLimiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	hl.budget = n
	hl.budgetWindow = window
	return hl
}

func (hl *HostLimiter) MinInterval() time.Duration { return hl.minInterval }

func (hl *HostLimiter) gateFor(host string) *hostGate {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if g, ok := hl.m[host]; ok {
		return g
	}
	g := &hostGate{slot: make(chan struct{}, 1)}
	if hl.budget > 0 && hl.budgetWindow > 0 {
		g.budget = rate.NewLimiter(rate.Every(hl.budgetWindow/time.Duration(hl.budget)), hl.budget)
	}
	hl.m[host] = g
	return g
}

// gap is minInterval plus a jitter drawn from [0, 2*jitter]; it never drops below
// the floor.
func (hl *HostLimiter) gap(floor time.Duration) time.Duration {
	base := hl.minInterval
	if floor > base {
		base = floor
	}
	if hl.jitter <= 0 {
		return base
	}
	return base + time.Duration(hl.rnd()*float64(2*hl.jitter))
}

func (hl *HostLimiter) Wait(ctx context.Context, host string) error {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		host = "_"
	}
	g := hl.gateFor(host)

	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slot }()

	if g.budget != nil {
		if err := g.budget.Wait(ctx); err != nil {
			return budgetErr(ctx, host, err)
		}
	}

	if !g.last.IsZero() {
		if d := time.Until(g.last.Add(hl.gap(minIntervalFrom(ctx)))); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}
	}
	g.last = time.Now()
	return nil
}

func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return hl.Wait(ctx, "_")
	}
	return hl.Wait(ctx, u.Host)
}

type minIntervalKey struct{}

// WithMinInterval raises the pacing gap for requests made with ctx, used for
// companies configured with a slower request_delay.
func WithMinInterval(ctx context.Context, d time.Duration) context.Context {
	if d <= 0 {
		return ctx
	}
	return context.WithValue(ctx, minIntervalKey{}, d)
}

func minIntervalFrom(ctx context.Context) time.Duration {
	if d, ok := ctx.Value(minIntervalKey{}).(time.Duration); ok {
		return d
	}
	return 0
}

// NoDelay grants immediately.
type NoDelay struct{}

func (NoDelay) WaitURL(ctx context.Context, _ string) error { return ctx.Err() }

// budgetErr reports a refused budget wait as a timeout when the context has a
// deadline; rate.Limiter refuses early instead of returning ctx.Err().
func budgetErr(ctx context.Context, host string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("host budget for %s: %w", host, context.DeadlineExceeded)
	}
	return err
}
