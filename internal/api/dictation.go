package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orthocare/orthocare/internal/extract"
	"github.com/orthocare/orthocare/internal/metrics"
)

// DictationHandler exposes the field extractor so thin clients can parse a
// transcript without shipping the rules themselves.
type DictationHandler struct{}

func (DictationHandler) Routes(r chi.Router) {
	r.Post("/dictation/parse", DictationHandler{}.Parse)
}

type parseRequest struct {
	Text string `json:"text"`
}

// Parse handles POST /api/v1/dictation/parse. Unmatched fields are absent
// from the response object.
func (DictationHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "text is required")
		return
	}
	fields := extract.Parse(req.Text)
	for _, f := range fields.Present() {
		metrics.ExtractedFieldsTotal.WithLabelValues(string(f)).Inc()
	}
	WriteJSON(w, http.StatusOK, fields)
}
