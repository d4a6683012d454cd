package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/docstore"
	"stealthcompany.com/patientpanel/internal/patient"
	"stealthcompany.com/patientpanel/internal/presenter"
	"stealthcompany.com/patientpanel/internal/recordstore"
)

// PatchRequestBody is the PATCH /patients/{id} body
type PatchRequestBody struct {
	Patches []patient.PatchRequest `json:"patches"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeStoreError maps store and validation errors to status codes
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, presenter.ErrValidation),
		errors.Is(err, patient.ErrUnknownStatus),
		errors.Is(err, patient.ErrUnknownField),
		errors.Is(err, patient.ErrIndexOutOfRange):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, docstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "Patient record not found")
	default:
		var failure *recordstore.Failure
		if errors.As(err, &failure) {
			writeError(w, http.StatusBadGateway, failure.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// HealthHandler reports liveness and the store state
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	st := s.panel.Store().State()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"store":   st.Status,
		"records": len(st.Records),
	})
}

func intParam(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

// parseQuery reads q, page, rowsPerPage, sort and order
func parseQuery(r *http.Request) (presenter.Query, error) {
	page, err := intParam(r, "page", 0)
	if err != nil {
		return presenter.Query{}, err
	}
	rows, err := intParam(r, "rowsPerPage", presenter.DefaultRowsPerPage)
	if err != nil {
		return presenter.Query{}, err
	}
	values := r.URL.Query()
	return presenter.Query{
		Filter:      values.Get("q"),
		SortBy:      values.Get("sort"),
		Order:       values.Get("order"),
		Page:        page,
		RowsPerPage: rows,
	}.Normalize(), nil
}

// ListPatientsHandler handles GET /patients
func (s *Server) ListPatientsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.panel.View(q))
}

// GetPatientHandler handles GET /patients/{id}
func (s *Server) GetPatientHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, ok := s.panel.Store().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Patient record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreatePatientHandler handles POST /patients
func (s *Server) CreatePatientHandler(w http.ResponseWriter, r *http.Request) {
	var input patient.NewRecordInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Warn().Err(err).Msg("Failed to decode new patient record")
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	form := s.panel.NewForm()
	form.Fill(input)
	id, err := form.Submit(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id": id,
	})
}

// PatchPatientHandler handles PATCH /patients/{id}
func (s *Server) PatchPatientHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body PatchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	patches, err := patient.ToPatches(body.Patches)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.panel.Update(r.Context(), id, patches...); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": "updated",
	})
}

// ReplacePatientHandler handles PUT /patients/{id} with a fully edited record
func (s *Server) ReplacePatientHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var rec patient.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	rec.ID = id
	rec.Fields = rec.Fields.Materialize()

	if err := s.panel.Replace(r.Context(), rec); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": "updated",
	})
}

// DeletePatientHandler handles DELETE /patients/{id}
func (s *Server) DeletePatientHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.panel.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefetchHandler handles POST /patients/refetch, the manual retry
func (s *Server) RefetchHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.panel.Retry(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.panel.View(q))
}

// ListNotificationsHandler handles GET /notifications
func (s *Server) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.panel.ActiveToasts())
}

// DismissNotificationHandler handles DELETE /notifications/{id}
func (s *Server) DismissNotificationHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.panel.Board().Dismiss(id) {
		writeError(w, http.StatusNotFound, "Notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
