package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/orthocare/orthocare/internal/patients"
)

type PatientsHandler struct {
	store patients.Store
	log   zerolog.Logger
}

func NewPatientsHandler(store patients.Store, log zerolog.Logger) *PatientsHandler {
	return &PatientsHandler{store: store, log: log.With().Str("handler", "patients").Logger()}
}

func (h *PatientsHandler) Routes(r chi.Router) {
	r.Get("/patients", h.List)
	r.Post("/patients", h.Create)
	r.Get("/patients/{id}", h.Get)
	r.Patch("/patients/{id}", h.Update)
	r.Delete("/patients/{id}", h.Delete)
}

// List handles GET /api/v1/patients[?q=].
func (h *PatientsHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		list []patients.Patient
		err  error
	)
	if q, ok := QueryString(r, "q"); ok {
		list, err = h.store.Search(r.Context(), q)
	} else {
		list, err = h.store.GetAll(r.Context())
	}
	if err != nil {
		h.fail(w, err, "list patients")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"patients": list, "total": len(list)})
}

func (h *PatientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err, "get patient")
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (h *PatientsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in patients.CreateInput
	if err := DecodeJSON(r, &in); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := h.store.Create(r.Context(), in)
	if err != nil {
		h.fail(w, err, "create patient")
		return
	}
	h.log.Info().Str("patient_id", id).Msg("patient created")
	WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *PatientsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var u patients.UpdateInput
	if err := DecodeJSON(r, &u); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if u.Empty() {
		WriteError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	p, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		h.fail(w, err, "update patient")
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (h *PatientsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.fail(w, err, "delete patient")
		return
	}
	h.log.Info().Str("patient_id", id).Msg("patient deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *PatientsHandler) fail(w http.ResponseWriter, err error, op string) {
	var ve *patients.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteValidationError(w, ve.Fields)
	case errors.Is(err, patients.ErrNotFound):
		WriteError(w, http.StatusNotFound, "patient not found")
	default:
		h.log.Error().Err(err).Msg(op + " failed")
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
