package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gradscout-engine/internal/domain"
	"gradscout-engine/internal/scrape"
	"gradscout-engine/internal/scrape/util"
)

// apiError is the body of every non-2xx JSON response. Kind is set when the
// failure maps onto the scrape error taxonomy.
type apiError struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Kind      domain.ErrorKind `json:"kind,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSON(w http.ResponseWriter, v any) {
	respond(w, http.StatusOK, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respond(w, status, apiError{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: RequestIDFrom(r.Context()),
	}})
}

// writeRunError reports err and tags it with its scrape error kind.
func writeRunError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	respond(w, status, apiError{Error: errorBody{
		Code:      code,
		Message:   err.Error(),
		Kind:      errorKind(err),
		RequestID: RequestIDFrom(r.Context()),
	}})
}

func errorKind(err error) domain.ErrorKind {
	if errors.Is(err, scrape.ErrNoCompanies) {
		return domain.ErrorConfig
	}
	if k := util.Classify(err); k != domain.ErrorInternal {
		return k
	}
	return domain.ErrorNone
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

func queryFloat(r *http.Request, key string) float64 {
	v, _ := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	return v
}
