package devstub

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lemillion789/MedAI-Smart-Triage/internal/api"
)

type Handler struct {
	store  *Store
	logger *zap.Logger
}

func NewHandler(store *Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the backend error contract: a detail message plus an
// optional field-keyed validation map.
func writeError(w http.ResponseWriter, status int, detail string, fields FieldErrors) {
	body := map[string]any{"detail": detail}
	if len(fields) > 0 {
		body["errors"] = fields
	}
	writeJSON(w, status, body)
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req api.PatientCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.", nil)
		return
	}

	patient, err := h.store.CreatePatient(req)
	if err != nil {
		var fields FieldErrors
		if errors.As(err, &fields) {
			writeError(w, http.StatusBadRequest, "Invalid patient data.", fields)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create patient.", nil)
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.ListPatients())
}

func (h *Handler) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		patientID    int
		image, audio *api.Upload
		symptomsText string
	)

	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid multipart body.", nil)
			return
		}
		patientID, _ = strconv.Atoi(r.FormValue("patient_id"))
		symptomsText = r.FormValue("symptoms_text")
		image = readFormUpload(r, "image")
		audio = readFormUpload(r, "audio")
	} else {
		var req struct {
			Patient      int    `json:"patient"`
			SymptomsText string `json:"symptoms_text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.", nil)
			return
		}
		patientID = req.Patient
		symptomsText = req.SymptomsText
	}

	if patientID == 0 {
		writeError(w, http.StatusBadRequest, "Missing patient id.", nil)
		return
	}

	consultation, err := h.store.CreateConsultation(patientID, image, audio, symptomsText)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Patient not found.", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create consultation.", nil)
		return
	}

	h.logger.Info("stub consultation created",
		zap.Int("consultation_id", consultation.ID),
		zap.Int("patient_id", patientID),
	)
	writeJSON(w, http.StatusCreated, consultation)
}

func readFormUpload(r *http.Request, field string) *api.Upload {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil
	}
	return &api.Upload{
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	}
}

func (h *Handler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid consultation id.", nil)
		return
	}
	consultation, err := h.store.GetConsultation(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Consultation not found.", nil)
		return
	}
	writeJSON(w, http.StatusOK, consultation)
}

func (h *Handler) ListConsultations(w http.ResponseWriter, r *http.Request) {
	patientID, _ := strconv.Atoi(r.URL.Query().Get("patient"))
	status := r.URL.Query().Get("status")
	writeJSON(w, http.StatusOK, h.store.ListConsultations(status, patientID))
}

func (h *Handler) SubmitTriageAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid consultation id.", nil)
		return
	}

	var req api.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.", nil)
		return
	}

	consultation, err := h.store.SubmitAnswer(id, req.Answer)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Consultation not found.", nil)
	case errors.Is(err, ErrTriageCompleted), errors.Is(err, ErrEmptyAnswer):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to process answer.", nil)
	default:
		writeJSON(w, http.StatusOK, consultation)
	}
}

func (h *Handler) FinalizeConsultation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid consultation id.", nil)
		return
	}

	var req api.FinalizeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	consultation, err := h.store.Finalize(id, req.Note)
	if err != nil {
		writeError(w, http.StatusNotFound, "Consultation not found.", nil)
		return
	}
	writeJSON(w, http.StatusOK, consultation)
}

func (h *Handler) PatientHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid patient id.", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.store.PatientHistory(id))
}

func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Stats())
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/patients/", h.CreatePatient)
	r.Get("/patients/", h.ListPatients)
	r.Get("/patients/{id}/history/", h.PatientHistory)
	r.Post("/consultations/", h.CreateConsultation)
	r.Get("/consultations/", h.ListConsultations)
	r.Get("/consultations/{id}/", h.GetConsultation)
	r.Post("/consultations/{id}/finalize/", h.FinalizeConsultation)
	r.Post("/studies/{id}/triage/", h.SubmitTriageAnswer)
	r.Get("/dashboard/stats/", h.DashboardStats)
}

// Router builds the full stub router with the same middleware the real
// deployment fronts the API with.
func Router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, h)
	})
	return r
}
