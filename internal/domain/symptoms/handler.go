package symptoms

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"clinical-access/internal/middleware"
	"clinical-access/internal/platform/httpx"
	"clinical-access/internal/platform/validation"
	"clinical-access/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Group(func(pr chi.Router) {
		pr.Use(middleware.RequireRole(auth.RolePatient))
		pr.Post("/patients/me/symptoms", logSymptomHandler(svc))
		pr.Get("/patients/me/symptoms", listSymptomsHandler(svc))
	})
}

type logSymptomRequest struct {
	Symptom  string `json:"symptom" validate:"required"`
	Severity string `json:"severity" validate:"omitempty,oneof=mild moderate severe"`
	Notes    string `json:"notes"`
}

// SymptomLogResponse es una entrada del diario de síntomas del paciente.
type SymptomLogResponse struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Symptom   string    `json:"symptom"`
	Severity  Severity  `json:"severity"`
	Notes     string    `json:"notes"`
	LoggedAt  time.Time `json:"logged_at"`
}

// logSymptomHandler godoc
// @Summary Registrar síntoma
// @Description El paciente anota un síntoma en su diario. Solo queda en la base local.
// @Tags symptoms
// @Accept json
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param payload body logSymptomRequest true "Síntoma"
// @Success 201 {object} SymptomLogResponse
// @Failure 400 {string} string "invalid json / symptom required"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/me/symptoms [post]
func logSymptomHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req logSymptomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validation.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		l, err := svc.Record(r.Context(), p.SubjectID, LogInput{
			Symptom:  req.Symptom,
			Severity: req.Severity,
			Notes:    req.Notes,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, "invalid input", http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, toResponse(l))
	}
}

// listSymptomsHandler godoc
// @Summary Mis síntomas
// @Description Lista el diario de síntomas del paciente autenticado, más recientes primero.
// @Tags symptoms
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Success 200 {array} SymptomLogResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/me/symptoms [get]
func listSymptomsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByPatient(r.Context(), p.SubjectID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]SymptomLogResponse, 0, len(items))
		for _, l := range items {
			out = append(out, toResponse(l))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func toResponse(l Log) SymptomLogResponse {
	return SymptomLogResponse{
		ID:        l.ID,
		PatientID: l.PatientID,
		Symptom:   l.Symptom,
		Severity:  l.Severity,
		Notes:     l.Notes,
		LoggedAt:  l.LoggedAt,
	}
}
