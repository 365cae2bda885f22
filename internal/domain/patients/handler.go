package patients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"clinical-access/internal/domain/encounters"
	"clinical-access/internal/middleware"
	"clinical-access/internal/platform/httpx"
	"clinical-access/internal/platform/validation"
	"clinical-access/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

// Authorizer evita importar accessgrants (rompe ciclos).
type Authorizer interface {
	AuthorizePatientAccess(ctx context.Context, p auth.Principal, patientID string) error
}

func RegisterRoutes(r chi.Router, svc *Service, issuer auth.CredentialIssuer, authz Authorizer) {
	r.Route("/auth/patients", func(ar chi.Router) {
		ar.Post("/register", registerHandler(svc, issuer))
		ar.Post("/login", loginHandler(svc, issuer))
	})

	// rutas planas: /patients/{patientID}/... también lo registra encounters
	r.With(middleware.RequireRole(auth.RolePatient)).Get("/patients/me", meHandler(svc))
	r.Get("/patients/{patientID}", getPatientHandler(svc, authz))
}

type registerRequest struct {
	Name      string   `json:"name" validate:"required"`
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=6"`
	DOB       string   `json:"dob" validate:"required"` // YYYY-MM-DD
	Gender    string   `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	Phone     string   `json:"phone"`
	Address   string   `json:"address"`
	Allergies []string `json:"allergies"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PatientResponse es el perfil sin hash de contraseña.
type PatientResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	DOB        string    `json:"dob"`
	Gender     Gender    `json:"gender"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address"`
	Allergies  []string  `json:"allergies"`
	ExternalID *string   `json:"external_id"`
	Synced     bool      `json:"synced"`
	CreatedAt  time.Time `json:"created_at"`
}

type sessionResponse struct {
	Patient PatientResponse `json:"patient"`
	Token   string          `json:"token"`
	Message string          `json:"message,omitempty"`
}

// ViewResponse es la vista compuesta local + EMR.
type ViewResponse struct {
	Patient        PatientResponse                `json:"patient"`
	Encounters     []encounters.EncounterResponse `json:"encounters"`
	External       json.RawMessage                `json:"external,omitempty"`
	Degraded       bool                           `json:"degraded"`
	DegradedReason string                         `json:"degraded_reason,omitempty"`
}

// registerHandler godoc
// @Summary Registrar paciente
// @Description Crea el paciente localmente y luego intenta darlo de alta en el EMR externo. Si el EMR no responde el registro igual es exitoso y synced=false.
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body registerRequest true "Datos del paciente; dob en formato YYYY-MM-DD"
// @Success 201 {object} sessionResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 409 {string} string "email already registered"
// @Router /auth/patients/register [post]
func registerHandler(svc *Service, issuer auth.CredentialIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validation.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		dob, err := time.Parse("2006-01-02", req.DOB)
		if err != nil {
			http.Error(w, "dob must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		res, err := svc.Register(r.Context(), RegisterInput{
			Name:      req.Name,
			Email:     req.Email,
			Password:  req.Password,
			DOB:       dob,
			Gender:    req.Gender,
			Phone:     req.Phone,
			Address:   req.Address,
			Allergies: req.Allergies,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrEmailTaken):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		token, err := issuer.Issue(principalOf(res.Patient))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		msg := "patient registered and synced with external EMR"
		if !res.Synced {
			msg = "patient registered locally (external EMR sync pending)"
		}
		httpx.WriteJSON(w, http.StatusCreated, sessionResponse{
			Patient: ToResponse(res.Patient),
			Token:   token,
			Message: msg,
		})
	}
}

// loginHandler godoc
// @Summary Login de paciente
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body loginRequest true "Credenciales"
// @Success 200 {object} sessionResponse
// @Failure 400 {string} string "invalid json"
// @Failure 401 {string} string "invalid credentials"
// @Router /auth/patients/login [post]
func loginHandler(svc *Service, issuer auth.CredentialIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validation.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		p, err := svc.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		token, err := issuer.Issue(principalOf(p))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, sessionResponse{Patient: ToResponse(p), Token: token})
	}
}

// meHandler godoc
// @Summary Mi historia clínica
// @Description Perfil local, consultas locales y datos del EMR si está disponible. Si el EMR falla se responde 200 con degraded=true.
// @Tags patients
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev"
// @Param X-Debug-Role header string false "Solo en modo dev (patient|clinic)"
// @Param Authorization header string false "Bearer token"
// @Success 200 {object} ViewResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/me [get]
func meHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		writeView(w, r, svc, p.SubjectID)
	}
}

// getPatientHandler godoc
// @Summary Ver paciente
// @Description El propio paciente, o una clínica con un grant vigente para ese paciente.
// @Tags patients
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} ViewResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID} [get]
func getPatientHandler(svc *Service, authz Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if err := authz.AuthorizePatientAccess(r.Context(), p, patientID); err != nil {
			switch {
			case errors.Is(err, auth.ErrUnauthenticated):
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			case errors.Is(err, auth.ErrForbidden):
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeView(w, r, svc, patientID)
	}
}

func writeView(w http.ResponseWriter, r *http.Request, svc *Service, patientID string) {
	v, err := svc.View(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ToViewResponse(v))
}

func ToResponse(p Patient) PatientResponse {
	allergies := p.Allergies
	if allergies == nil {
		allergies = []string{}
	}
	return PatientResponse{
		ID:         p.ID,
		Name:       p.Name,
		Email:      p.Email,
		DOB:        p.DOB.Format("2006-01-02"),
		Gender:     p.Gender,
		Phone:      p.Phone,
		Address:    p.Address,
		Allergies:  allergies,
		ExternalID: p.ExternalID,
		Synced:     p.Synced(),
		CreatedAt:  p.CreatedAt,
	}
}

// ToViewResponse lo reutiliza el scan de accessgrants.
func ToViewResponse(v View) ViewResponse {
	encs := make([]encounters.EncounterResponse, 0, len(v.Encounters))
	for _, e := range v.Encounters {
		encs = append(encs, encounters.ToResponse(e))
	}
	return ViewResponse{
		Patient:        ToResponse(v.Patient),
		Encounters:     encs,
		External:       v.External,
		Degraded:       v.Degraded,
		DegradedReason: v.DegradedReason,
	}
}

func principalOf(p Patient) auth.Principal {
	return auth.Principal{SubjectID: p.ID, Role: auth.RolePatient, Email: p.Email}
}
