package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"gradscout-engine/internal/config"
	"gradscout-engine/internal/poll"
	"gradscout-engine/internal/scrape"
)

type ScrapeHandler struct {
	Runner *poll.Runner
	Log    *slog.Logger
}

func (h ScrapeHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Runner.Status())
}

// Run starts a scrape in the background and returns 202 right away. Progress
// arrives on /api/events.
func (h ScrapeHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if h.Runner.Running() {
		writeRunError(w, r, http.StatusConflict, "already_running", poll.ErrAlreadyRunning)
		return
	}

	sel := config.Selection{Tiers: req.Tiers, Companies: req.Companies}
	n := len(h.Runner.Config().Companies.CompanyConfigs(sel))
	if n == 0 {
		writeRunError(w, r, http.StatusBadRequest, "no_companies",
			fmt.Errorf("%w: selection matched no configured companies", scrape.ErrNoCompanies))
		return
	}

	reqID := RequestIDFrom(r.Context())
	go func() {
		// outlives the request
		if _, _, err := h.Runner.RunOnce(context.Background(), sel); err != nil {
			h.Log.Warn("[api] manual run ended with error", "request_id", reqID, "err", err)
		}
	}()

	respond(w, http.StatusAccepted, RunAccepted{OK: true, Companies: n})
}
