package poll

import (
	"context"
	"errors"
	"log/slog"

	"gradscout-engine/internal/config"
	"gradscout-engine/internal/scheduler"
)

// StartPoller runs every configured company on the polling interval until ctx
// is done. It does nothing when polling is disabled.
func StartPoller(ctx context.Context, r *Runner, log *slog.Logger) {
	p := r.Config().Settings.Polling
	if !p.Enabled {
		log.Info("[poll] polling disabled")
		return
	}
	log.Info("[poll] polling enabled", "interval", p.Interval, "run_on_start", p.RunOnStart)

	go scheduler.Every(ctx, p.Interval, "poll", p.RunOnStart, func(ctx context.Context) error {
		_, _, err := r.RunOnce(ctx, config.Selection{})
		if errors.Is(err, ErrAlreadyRunning) {
			log.Info("[poll] skipped; manual run in progress")
			return nil
		}
		return err
	}, log)
}
