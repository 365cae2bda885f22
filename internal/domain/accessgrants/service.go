package accessgrants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access/internal/domain/patients"
	"clinical-access/internal/platform/logger"
	"clinical-access/internal/platform/metrics"
	"clinical-access/internal/ports/auth"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidFormat    = errors.New("invalid token format")
	ErrNotFound         = errors.New("not found")
	ErrExpired          = errors.New("grant expired")
	ErrRevoked          = errors.New("grant revoked")
	ErrWrongClinic      = errors.New("grant issued for another clinic")
	ErrForbidden        = auth.ErrForbidden
	ErrDuplicateToken   = errors.New("duplicate token")
	ErrExhaustedRetries = errors.New("token generation retries exhausted")
)

const (
	DefaultTTL       = 24 * time.Hour
	maxIssueAttempts = 3
)

// PatientReader compone la vista del paciente (local + EMR best-effort).
type PatientReader interface {
	View(ctx context.Context, patientID string) (patients.View, error)
}

type Options struct {
	TTL     time.Duration
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

type Service struct {
	repo     Repository
	tokens   *TokenGenerator
	patients PatientReader

	ttl     time.Duration
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, tokens *TokenGenerator, patientsReader PatientReader, opts Options) *Service {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		repo:     repo,
		tokens:   tokens,
		patients: patientsReader,
		ttl:      ttl,
		log:      log.With(map[string]any{"component": "accessgrants"}),
		metrics:  m,
		now:      time.Now,
	}
}

type IssueResult struct {
	Grant  Grant
	QRCode []byte // PNG
}

// Issue crea un grant para clinicID. Solo reintenta ante colisión de token.
func (s *Service) Issue(ctx context.Context, p auth.Principal, clinicID string) (IssueResult, error) {
	if !p.Is(auth.RolePatient) {
		return IssueResult{}, ErrForbidden
	}
	clinicID = strings.TrimSpace(clinicID)
	if clinicID == "" {
		return IssueResult{}, ErrInvalidInput
	}

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		token, img, err := s.tokens.Issue()
		if err != nil {
			return IssueResult{}, err
		}

		now := s.now()
		g := Grant{
			ID:        uuid.NewString(),
			PatientID: p.SubjectID,
			ClinicID:  clinicID,
			Token:     token,
			ExpiresAt: now.Add(s.ttl),
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = s.repo.Put(ctx, g)
		if err == nil {
			s.metrics.GrantsIssued.Inc()
			s.log.Info("grant issued", map[string]any{
				"grant_id":   g.ID,
				"patient_id": g.PatientID,
				"clinic_id":  g.ClinicID,
				"expires_at": g.ExpiresAt,
			})
			return IssueResult{Grant: g, QRCode: img}, nil
		}
		if !errors.Is(err, ErrDuplicateToken) {
			return IssueResult{}, fmt.Errorf("store grant: %w", err)
		}

		s.metrics.IssueRetries.Inc()
		s.log.Warn("token collision, regenerating", map[string]any{"attempt": attempt})
	}

	return IssueResult{}, ErrExhaustedRetries
}

type ScanResult struct {
	Grant   GrantSummary
	Patient patients.View
}

// Scan valida el token presentado por una clínica. No muta nada.
// Orden: formato, existencia, expiración, revocación, clínica.
func (s *Service) Scan(ctx context.Context, p auth.Principal, rawToken string) (ScanResult, error) {
	if !p.Is(auth.RoleClinic) {
		return ScanResult{}, ErrForbidden
	}

	g, err := s.check(ctx, p.SubjectID, rawToken)
	s.metrics.ScanOutcomes.WithLabelValues(scanOutcome(err)).Inc()
	if err != nil {
		return ScanResult{}, err
	}

	view, err := s.patients.View(ctx, g.PatientID)
	if err != nil {
		return ScanResult{}, fmt.Errorf("load patient: %w", err)
	}

	return ScanResult{
		Grant:   g.Summary(s.now()),
		Patient: view,
	}, nil
}

func (s *Service) check(ctx context.Context, clinicID, rawToken string) (Grant, error) {
	token, err := NormalizeToken(rawToken)
	if err != nil {
		return Grant{}, err
	}

	g, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Grant{}, ErrNotFound
		}
		return Grant{}, fmt.Errorf("get grant: %w", err)
	}

	switch g.StateAt(s.now()) {
	case StateExpired:
		return Grant{}, ErrExpired
	case StateRevoked:
		return Grant{}, ErrRevoked
	}
	if g.ClinicID != clinicID {
		return Grant{}, ErrWrongClinic
	}
	return g, nil
}

// Revoke es idempotente: revocar dos veces devuelve el mismo estado final.
func (s *Service) Revoke(ctx context.Context, p auth.Principal, grantID string) (Grant, error) {
	if !p.Is(auth.RolePatient) {
		return Grant{}, ErrForbidden
	}
	grantID = strings.TrimSpace(grantID)
	if grantID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Grant{}, ErrNotFound
		}
		return Grant{}, fmt.Errorf("get grant: %w", err)
	}
	if g.PatientID != p.SubjectID {
		return Grant{}, ErrForbidden
	}

	now := s.now()
	if err := s.repo.MarkRevoked(ctx, g.ID, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Grant{}, ErrNotFound
		}
		return Grant{}, fmt.Errorf("revoke grant: %w", err)
	}

	if g.IsActive {
		g.IsActive = false
		g.UpdatedAt = now
		s.log.Info("grant revoked", map[string]any{"grant_id": g.ID, "patient_id": g.PatientID})
	}
	s.metrics.GrantsRevoked.Inc()
	return g, nil
}

// ListMine: el paciente ve todos sus grants (auditoría); la clínica solo los usables.
func (s *Service) ListMine(ctx context.Context, p auth.Principal) ([]Grant, error) {
	switch {
	case p.Is(auth.RolePatient):
		items, err := s.repo.ListByPatient(ctx, p.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("list grants: %w", err)
		}
		return items, nil
	case p.Is(auth.RoleClinic):
		items, err := s.repo.ListUsableByClinic(ctx, p.SubjectID, s.now())
		if err != nil {
			return nil, fmt.Errorf("list grants: %w", err)
		}
		return items, nil
	default:
		return nil, auth.ErrUnauthenticated
	}
}

// AuthorizePatientAccess: un paciente solo se accede a sí mismo; una clínica
// necesita un grant usable para ese paciente.
func (s *Service) AuthorizePatientAccess(ctx context.Context, p auth.Principal, patientID string) error {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return ErrInvalidInput
	}

	switch {
	case p.Is(auth.RolePatient):
		if p.SubjectID != patientID {
			return ErrForbidden
		}
		return nil
	case p.Is(auth.RoleClinic):
		_, err := s.repo.FindUsable(ctx, patientID, p.SubjectID, s.now())
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return ErrForbidden
		}
		return fmt.Errorf("find grant: %w", err)
	default:
		return auth.ErrUnauthenticated
	}
}

// Now expone el reloj del servicio para que los handlers deriven estados coherentes.
func (s *Service) Now() time.Time {
	return s.now()
}

func scanOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	case errors.Is(err, ErrWrongClinic):
		return "wrong_clinic"
	default:
		return "error"
	}
}
