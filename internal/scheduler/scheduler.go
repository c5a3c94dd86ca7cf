package scheduler

import (
	"context"
	"log/slog"
	"time"
)

type Task func(ctx context.Context) error

// Every runs task on each tick until ctx is done. Ticks that arrive while the
// previous run is still going are skipped by the ticker. When runNow is set the
// first run starts immediately instead of after one interval.
func Every(ctx context.Context, interval time.Duration, name string, runNow bool, task Task, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		log.Warn("["+name+"] not scheduled", "interval", interval)
		return
	}

	run := func() {
		if err := task(ctx); err != nil && ctx.Err() == nil {
			log.Error("["+name+"] error", "err", err)
		}
	}

	if runNow {
		run()
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
