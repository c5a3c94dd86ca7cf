package httpapi

import (
	"net/http"
	"time"

	"gradscout-engine/internal/poll"
)

type HealthHandler struct {
	Runner *poll.Runner
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"ok":   true,
		"time": time.Now().Format(time.RFC3339),
	}
	if h.Runner != nil {
		out["scraping"] = h.Runner.Running()
	}
	writeJSON(w, out)
}
