package httpapi

import (
	"database/sql"
	"errors"
	"net/http"

	"gradscout-engine/internal/store"

	"github.com/go-chi/chi/v5"
)

type JobsHandler struct {
	DB *sql.DB
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jobs, err := store.ListJobs(r.Context(), h.DB, store.ListJobsOpts{
		Sort:     q.Get("sort"),
		Window:   q.Get("window"),
		Category: q.Get("category"),
		Company:  q.Get("company"),
		RunID:    q.Get("run_id"),
		MinScore: queryFloat(r, "min_score"),
		Limit:    queryInt(r, "limit", 500),
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	writeJSON(w, jobs)
}

func (h JobsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns(r.Context(), h.DB, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, runs)
}

func (h JobsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := store.GetRun(r.Context(), h.DB, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", "run not found")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	writeJSON(w, run)
}
