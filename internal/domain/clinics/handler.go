package clinics

import (
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

func RegisterRoutes(r chi.Router, svc *Service, issuer auth.CredentialIssuer) {
	r.Route("/auth/clinics", func(ar chi.Router) {
		ar.Post("/register", registerHandler(svc, issuer))
		ar.Post("/login", loginHandler(svc, issuer))
	})

	r.With(middleware.RequireRole(auth.RoleClinic)).Post("/clinic/prescriptions/check", checkPrescriptionHandler(svc))
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Hospital string `json:"hospital" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type checkPrescriptionRequest struct {
	Medications []string `json:"medications" validate:"required,min=1"`
}

type clinicResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Hospital  string    `json:"hospital"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	Clinic clinicResponse `json:"clinic"`
	Token  string         `json:"token"`
}

// registerHandler godoc
// @Summary Registrar clínica
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body registerRequest true "Datos de la clínica"
// @Success 201 {object} sessionResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 409 {string} string "email already registered"
// @Router /auth/clinics/register [post]
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

		c, err := svc.Register(r.Context(), RegisterInput(req))
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

		writeSession(w, http.StatusCreated, issuer, c)
	}
}

// loginHandler godoc
// @Summary Login de clínica
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body loginRequest true "Credenciales"
// @Success 200 {object} sessionResponse
// @Failure 401 {string} string "invalid credentials"
// @Router /auth/clinics/login [post]
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

		c, err := svc.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeSession(w, http.StatusOK, issuer, c)
	}
}

// checkPrescriptionHandler godoc
// @Summary Chequear interacciones de una receta
// @Description Consulta sincrónica al servicio de farmacovigilancia del EMR externo.
// @Tags clinic
// @Accept json
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param payload body checkPrescriptionRequest true "Medicamentos"
// @Success 200 {object} object
// @Failure 400 {string} string "medications required"
// @Failure 403 {string} string "forbidden"
// @Failure 503 {string} string "external EMR unavailable"
// @Router /clinic/prescriptions/check [post]
func checkPrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkPrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validation.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		raw, err := svc.CheckPrescription(r.Context(), req.Medications)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, "medications required", http.StatusBadRequest)
			case errors.Is(err, emr.ErrUnavailable):
				http.Error(w, "external EMR unavailable", http.StatusServiceUnavailable)
			case errors.Is(err, emr.ErrRejected):
				http.Error(w, "external EMR rejected the request", http.StatusUnprocessableEntity)
			case errors.Is(err, emr.ErrExternal):
				http.Error(w, "external EMR error", http.StatusBadGateway)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
	}
}

func writeSession(w http.ResponseWriter, status int, issuer auth.CredentialIssuer, c Clinic) {
	token, err := issuer.Issue(principalOf(c))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, status, sessionResponse{
		Clinic: clinicResponse{
			ID:        c.ID,
			Name:      c.Name,
			Email:     c.Email,
			Hospital:  c.Hospital,
			CreatedAt: c.CreatedAt,
		},
		Token: token,
	})
}
