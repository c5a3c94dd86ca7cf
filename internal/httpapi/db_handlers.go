package httpapi

import (
	"database/sql"
	"net"
	"net/http"
)

type DBHandler struct {
	DB *sql.DB
}

// Checkpoint folds the WAL back into the database file. Local callers only.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	if !isLocal(r) {
		writeError(w, r, http.StatusForbidden, "forbidden", "local requests only")
		return
	}
	if h.DB == nil {
		writeError(w, r, http.StatusServiceUnavailable, "no_db", "database not attached")
		return
	}
	if _, err := h.DB.ExecContext(r.Context(), `PRAGMA wal_checkpoint(FULL);`); err != nil {
		writeError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isLocal(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}
