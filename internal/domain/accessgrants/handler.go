package accessgrants

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"clinical-access/internal/domain/patients"
	"clinical-access/internal/middleware"
	"clinical-access/internal/platform/httpx"
	"clinical-access/internal/platform/validation"
	"clinical-access/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

type HandlerOptions struct {
	// OpaqueScanErrors colapsa NotFound/Expired/Revoked/WrongClinic en un único
	// "invalid code" para que una clínica no pueda confirmar la existencia de un grant.
	OpaqueScanErrors bool

	// ScanLimiter es opcional (rate limit por clínica).
	ScanLimiter func(http.Handler) http.Handler
}

func RegisterRoutes(r chi.Router, svc *Service, opts HandlerOptions) {
	patientOnly := middleware.RequireRole(auth.RolePatient)
	clinicOnly := middleware.RequireRole(auth.RoleClinic)

	r.Route("/access", func(ar chi.Router) {
		ar.With(patientOnly).Post("/grants", issueGrantHandler(svc))
		ar.Get("/grants", listGrantsHandler(svc))
		ar.With(patientOnly).Post("/grants/{grantID}/revoke", revokeGrantHandler(svc))

		scan := ar.With(clinicOnly)
		if opts.ScanLimiter != nil {
			scan = scan.With(opts.ScanLimiter)
		}
		scan.Get("/scan/{token}", scanHandler(svc, opts.OpaqueScanErrors))
	})
}

type issueGrantRequest struct {
	ClinicID string `json:"clinic_id" validate:"required"`
}

// grantResponse es la vista del dueño: incluye el token para volver a mostrar el QR.
type grantResponse struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	ClinicID  string    `json:"clinic_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	IsActive  bool      `json:"is_active"`
	State     State     `json:"state" enums:"active,expired,revoked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type issueGrantResponse struct {
	Grant  grantResponse `json:"grant"`
	QRCode string        `json:"qr_code"` // data URL PNG
}

// grantSummaryResponse es la vista de la clínica: nunca incluye el token.
type grantSummaryResponse struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	ClinicID  string    `json:"clinic_id"`
	ExpiresAt time.Time `json:"expires_at"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

type scanResponse struct {
	Grant   grantSummaryResponse  `json:"grant"`
	Patient patients.ViewResponse `json:"patient"`
}

// issueGrantHandler godoc
// @Summary Emitir acceso por QR
// @Description El paciente habilita a una clínica por un tiempo limitado. Devuelve el grant y el QR (PNG en data URL) que la clínica debe escanear.
// @Tags access
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID del sujeto"
// @Param X-Debug-Role header string false "Solo en modo dev (patient|clinic)"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body issueGrantRequest true "Clínica destino"
// @Success 201 {object} issueGrantResponse
// @Failure 400 {string} string "invalid json / clinic_id required"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /access/grants [post]
func issueGrantHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req issueGrantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validation.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res, err := svc.Issue(r.Context(), p, req.ClinicID)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, "clinic_id required", http.StatusBadRequest)
			case errors.Is(err, ErrForbidden):
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, issueGrantResponse{
			Grant:  toGrantResponse(res.Grant, svc.Now()),
			QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(res.QRCode),
		})
	}
}

// listGrantsHandler godoc
// @Summary Listar mis accesos
// @Description Paciente: todos sus grants con estado derivado (active, expired, revoked) para auditoría. Clínica: solo los grants vigentes emitidos para ella, sin token.
// @Tags access
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Success 200 {array} grantResponse
// @Failure 401 {string} string "unauthorized"
// @Router /access/grants [get]
func listGrantsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListMine(r.Context(), p)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		now := svc.Now()
		if p.Is(auth.RoleClinic) {
			out := make([]grantSummaryResponse, 0, len(items))
			for _, g := range items {
				out = append(out, toSummaryResponse(g.Summary(now)))
			}
			httpx.WriteJSON(w, http.StatusOK, out)
			return
		}

		out := make([]grantResponse, 0, len(items))
		for _, g := range items {
			out = append(out, toGrantResponse(g, now))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

// revokeGrantHandler godoc
// @Summary Revocar acceso
// @Description Solo el paciente que emitió el grant. Es idempotente: revocar dos veces responde 200.
// @Tags access
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param grantID path string true "ID del grant"
// @Success 200 {object} grantResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /access/grants/{grantID}/revoke [post]
func revokeGrantHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		g, err := svc.Revoke(r.Context(), p, chi.URLParam(r, "grantID"))
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrForbidden):
				http.Error(w, "forbidden", http.StatusForbidden)
			case errors.Is(err, ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toGrantResponse(g, svc.Now()))
	}
}

// scanHandler godoc
// @Summary Escanear QR
// @Description La clínica presenta el token. Si es válido devuelve la vista del paciente (datos locales y EMR best-effort, con degraded=true si el EMR falló). Con SCAN_OPAQUE_ERRORS=true los rechazos responden siempre 404 "invalid code".
// @Tags access
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param token path string true "Token del QR (UUID)"
// @Success 200 {object} scanResponse
// @Failure 400 {string} string "invalid code format"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden / wrong clinic"
// @Failure 404 {string} string "invalid code / not found"
// @Failure 410 {string} string "expired / revoked"
// @Failure 429 {string} string "too many requests"
// @Router /access/scan/{token} [get]
func scanHandler(svc *Service, opaque bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		res, err := svc.Scan(r.Context(), p, chi.URLParam(r, "token"))
		if err != nil {
			status, msg := scanError(err, opaque)
			http.Error(w, msg, status)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, scanResponse{
			Grant:   toSummaryResponse(res.Grant),
			Patient: patients.ToViewResponse(res.Patient),
		})
	}
}

func scanError(err error, opaque bool) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidFormat):
		return http.StatusBadRequest, "invalid code format"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	}

	rejected := errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrRevoked) || errors.Is(err, ErrWrongClinic)
	if rejected && opaque {
		return http.StatusNotFound, "invalid code"
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "access grant not found"
	case errors.Is(err, ErrExpired):
		return http.StatusGone, "access grant expired"
	case errors.Is(err, ErrRevoked):
		return http.StatusGone, "access grant revoked"
	case errors.Is(err, ErrWrongClinic):
		return http.StatusForbidden, "access grant is not for this clinic"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func toGrantResponse(g Grant, now time.Time) grantResponse {
	return grantResponse{
		ID:        g.ID,
		PatientID: g.PatientID,
		ClinicID:  g.ClinicID,
		Token:     g.Token,
		ExpiresAt: g.ExpiresAt,
		IsActive:  g.IsActive,
		State:     g.StateAt(now),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

func toSummaryResponse(s GrantSummary) grantSummaryResponse {
	return grantSummaryResponse(s)
}
