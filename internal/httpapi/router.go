package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the engine API. main() attaches /shutdown separately since it
// needs the server and token.
func NewRouter(d Deps) chi.Router {
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestID, Recover(d.Log), AccessLog(d.Log), Cors)

	r.Get("/health", HealthHandler{Runner: d.Runner}.Health)

	r.Route("/api", func(r chi.Router) {
		jh := JobsHandler{DB: d.DB}
		r.Get("/jobs", jh.List)
		r.Get("/runs", jh.ListRuns)
		r.Get("/runs/{id}", jh.GetRun)

		sch := ScrapeHandler{Runner: d.Runner, Log: d.Log}
		r.Get("/scrape/status", sch.Status)
		r.Post("/scrape/run", sch.Run)

		ch := ConfigHandler{Runner: d.Runner, Dir: d.ConfigDir, LoadCfg: d.LoadCfg}
		r.Get("/settings", ch.GetSettings)
		r.Put("/settings", ch.PutSettings)
		r.Get("/config/validate", ch.Validate)
		r.Get("/companies", ch.Companies)

		r.Post("/db/checkpoint", DBHandler{DB: d.DB}.Checkpoint)

		r.Get("/events", EventsHandler{Hub: d.Hub}.ServeSSE)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}
