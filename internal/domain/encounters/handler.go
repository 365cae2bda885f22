package encounters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"clinical-access/internal/middleware"
	"clinical-access/internal/platform/httpx"
	"clinical-access/internal/platform/validation"
	"clinical-access/internal/ports/auth"
	"clinical-access/internal/ports/emr"

	"github.com/go-chi/chi/v5"
)

// Authorizer decide si el principal puede operar sobre el paciente (lo implementa accessgrants).
type Authorizer interface {
	AuthorizePatientAccess(ctx context.Context, p auth.Principal, patientID string) error
}

func RegisterRoutes(r chi.Router, svc *Service, authz Authorizer) {
	r.With(middleware.RequireRole(auth.RoleClinic)).Post("/patients/{patientID}/encounters", createEncounterHandler(svc, authz))
	r.Post("/patients/{patientID}/records/extract", extractRecordHandler(svc, authz))
}

type medicationDTO struct {
	Name      string `json:"name" validate:"required"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

type vitalsDTO struct {
	BloodPressure string `json:"bloodPressure,omitempty"`
	HeartRate     string `json:"heartRate,omitempty"`
	Temperature   string `json:"temperature,omitempty"`
	Weight        string `json:"weight,omitempty"`
	Height        string `json:"height,omitempty"`
}

// createEncounterRequest es el cuerpo para registrar una consulta.
type createEncounterRequest struct {
	Summary       string          `json:"summary"`
	Symptoms      []string        `json:"symptoms"`
	Diagnosis     string          `json:"diagnosis"`
	Medications   []medicationDTO `json:"medications" validate:"dive"`
	Vitals        vitalsDTO       `json:"vitals"`
	EncounterDate string          `json:"encounter_date"` // RFC3339 opcional
}

type extractRecordRequest struct {
	RecordText string `json:"record_text" validate:"required"`
}

// EncounterResponse representa una consulta local con su vínculo opcional al EMR.
type EncounterResponse struct {
	ID            string          `json:"id"`
	PatientID     string          `json:"patient_id"`
	ClinicID      string          `json:"clinic_id,omitempty"`
	ExternalID    *string         `json:"external_id"`
	Synced        bool            `json:"synced"`
	Summary       string          `json:"summary"`
	Symptoms      []string        `json:"symptoms"`
	Diagnosis     string          `json:"diagnosis"`
	Medications   []medicationDTO `json:"medications"`
	Vitals        vitalsDTO       `json:"vitals"`
	EncounterDate time.Time       `json:"encounter_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

type extractRecordResponse struct {
	Resource  string             `json:"resource"`
	External  json.RawMessage    `json:"external,omitempty"`
	Encounter *EncounterResponse `json:"encounter"`
}

// createEncounterHandler godoc
// @Summary Registrar consulta
// @Description Crea la consulta en la base local y luego intenta reflejarla en el EMR externo una sola vez. Si el EMR falla la consulta queda con external_id nulo. Requiere clínica con grant vigente para el paciente.
// @Tags encounters
// @Accept json
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param patientID path string true "ID del paciente"
// @Param payload body createEncounterRequest true "Datos de la consulta"
// @Success 201 {object} EncounterResponse
// @Failure 400 {string} string "invalid json / datos incompletos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/encounters [post]
func createEncounterHandler(svc *Service, authz Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if !authorize(w, r, authz, p, patientID) {
			return
		}

		var req createEncounterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validation.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var date *time.Time
		if req.EncounterDate != "" {
			t, err := time.Parse(time.RFC3339, req.EncounterDate)
			if err != nil {
				http.Error(w, "encounter_date must be RFC3339", http.StatusBadRequest)
				return
			}
			date = &t
		}

		e, err := svc.Create(r.Context(), patientID, CreateInput{
			ClinicID:      p.SubjectID,
			Summary:       req.Summary,
			Symptoms:      req.Symptoms,
			Diagnosis:     req.Diagnosis,
			Medications:   toMedications(req.Medications),
			Vitals:        Vitals(req.Vitals),
			EncounterDate: date,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, "summary, diagnosis or symptoms required", http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, ToResponse(e))
	}
}

// extractRecordHandler godoc
// @Summary Extraer historia clínica desde texto
// @Description Envía el texto libre al EMR externo para estructurarlo. Es sincrónico: si el EMR falla no se guarda nada local. El paciente debe estar sincronizado con el EMR.
// @Tags encounters
// @Accept json
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param patientID path string true "ID del paciente"
// @Param payload body extractRecordRequest true "Texto de la historia clínica"
// @Success 201 {object} extractRecordResponse
// @Failure 400 {string} string "invalid json / record_text required"
// @Failure 403 {string} string "forbidden"
// @Failure 409 {string} string "patient not synced with external EMR"
// @Failure 422 {string} string "external EMR rejected the record"
// @Failure 502 {string} string "external EMR error"
// @Failure 503 {string} string "external EMR unavailable"
// @Router /patients/{patientID}/records/extract [post]
func extractRecordHandler(svc *Service, authz Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if !authorize(w, r, authz, p, patientID) {
			return
		}

		var req extractRecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validation.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		clinicID := ""
		if p.Is(auth.RoleClinic) {
			clinicID = p.SubjectID
		}

		res, err := svc.CreateFromText(r.Context(), patientID, clinicID, req.RecordText)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, "record_text required", http.StatusBadRequest)
			case errors.Is(err, ErrPatientNotSynced):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, emr.ErrUnavailable):
				http.Error(w, "external EMR unavailable", http.StatusServiceUnavailable)
			case errors.Is(err, emr.ErrRejected):
				http.Error(w, "external EMR rejected the record", http.StatusUnprocessableEntity)
			case errors.Is(err, emr.ErrExternal):
				http.Error(w, "external EMR error", http.StatusBadGateway)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		out := extractRecordResponse{Resource: res.Resource, External: res.Raw}
		if res.Encounter != nil {
			er := ToResponse(*res.Encounter)
			out.Encounter = &er
		}
		httpx.WriteJSON(w, http.StatusCreated, out)
	}
}

func authorize(w http.ResponseWriter, r *http.Request, authz Authorizer, p auth.Principal, patientID string) bool {
	err := authz.AuthorizePatientAccess(r.Context(), p, patientID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, auth.ErrUnauthenticated):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
	return false
}

// ToResponse lo reutiliza patients para la vista compuesta.
func ToResponse(e Encounter) EncounterResponse {
	meds := make([]medicationDTO, 0, len(e.Medications))
	for _, m := range e.Medications {
		meds = append(meds, medicationDTO(m))
	}
	symptoms := e.Symptoms
	if symptoms == nil {
		symptoms = []string{}
	}
	return EncounterResponse{
		ID:            e.ID,
		PatientID:     e.PatientID,
		ClinicID:      e.ClinicID,
		ExternalID:    e.ExternalID,
		Synced:        e.Synced(),
		Summary:       e.Summary,
		Symptoms:      symptoms,
		Diagnosis:     e.Diagnosis,
		Medications:   meds,
		Vitals:        vitalsDTO(e.Vitals),
		EncounterDate: e.EncounterDate,
		CreatedAt:     e.CreatedAt,
	}
}

func toMedications(in []medicationDTO) []Medication {
	out := make([]Medication, 0, len(in))
	for _, m := range in {
		out = append(out, Medication(m))
	}
	return out
}
