package httpapi

import (
	"net/http"

	"gradscout-engine/internal/config"
	"gradscout-engine/internal/poll"
)

type ConfigHandler struct {
	Runner  *poll.Runner
	Dir     string
	LoadCfg func() (config.Config, error)
}

func (h ConfigHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Runner.Config().Settings)
}

// PutSettings replaces settings.yml. Companies and job types are edited on disk.
func (h ConfigHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	incoming := config.Defaults()
	if err := decodeJSON(r, &incoming); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	cur := h.Runner.Config()
	cur.Settings = incoming
	normalized, vr := config.NormalizeAndValidate(cur)
	if !vr.OK() {
		respond(w, http.StatusBadRequest, vr)
		return
	}

	if err := config.SaveSettings(h.Dir, normalized.Settings); err != nil {
		writeError(w, r, http.StatusBadRequest, "save_failed", err.Error())
		return
	}

	saved, err := h.LoadCfg()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "reload_failed", "saved but reload failed: "+err.Error())
		return
	}
	h.Runner.SetConfig(saved)
	writeJSON(w, saved.Settings)
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	_, vr := config.NormalizeAndValidate(h.Runner.Config())
	writeJSON(w, vr)
}

func (h ConfigHandler) Companies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Runner.Config().Companies.ByTier())
}
