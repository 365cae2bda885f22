package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access/internal/domain/emrsync"
	"clinical-access/internal/domain/encounters"
	"clinical-access/internal/platform/logger"
	"clinical-access/internal/ports/auth"
	"clinical-access/internal/ports/emr"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const minPasswordLen = 6

// EncounterLister lo cumplen encounters.Repository y encounters.Service.
type EncounterLister interface {
	ListByPatient(ctx context.Context, patientID string) ([]encounters.Encounter, error)
}

type Service struct {
	repo       Repository
	encounters EncounterLister
	sync       *emrsync.Adapter
	log        logger.Logger

	now        func() time.Time
	bcryptCost int
}

func NewService(repo Repository, encs EncounterLister, sync *emrsync.Adapter, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:       repo,
		encounters: encs,
		sync:       sync,
		log:        log.With(map[string]any{"component": "patients"}),
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
}

type RegisterInput struct {
	Name      string
	Email     string
	Password  string
	DOB       time.Time
	Gender    string
	Phone     string
	Address   string
	Allergies []string
}

type RegisterResult struct {
	Patient Patient
	Synced  bool
}

// Register guarda local (autoritativo) y luego intenta un alta en el EMR.
// Si el EMR falla el registro igual es exitoso, con Synced=false.
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.DOB.IsZero() || len(in.Password) < minPasswordLen {
		return RegisterResult{}, ErrInvalidInput
	}
	gender, ok := ParseGender(strings.TrimSpace(in.Gender))
	if !ok {
		return RegisterResult{}, ErrInvalidInput
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return RegisterResult{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return RegisterResult{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	p := Patient{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		DOB:          in.DOB,
		Gender:       gender,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		Allergies:    cleanList(in.Allergies),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return RegisterResult{}, ErrEmailTaken
		}
		return RegisterResult{}, fmt.Errorf("create patient: %w", err)
	}

	synced := s.mirror(ctx, &p)
	return RegisterResult{Patient: p, Synced: synced}, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (Patient, error) {
	p, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Patient{}, ErrInvalidCredentials
		}
		return Patient{}, fmt.Errorf("lookup email: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return Patient{}, ErrInvalidCredentials
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Patient{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// ExternalIDOf implementa encounters.PatientLookup.
func (s *Service) ExternalIDOf(ctx context.Context, patientID string) (*string, error) {
	p, err := s.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return p.ExternalID, nil
}

// Principal implementa la búsqueda de sujetos para el verificador de credenciales.
// Principal resuelve el sujeto de una credencial. Un paciente inexistente es
// ErrUnauthenticated; cualquier otra falla del store se propaga tal cual.
func (s *Service) Principal(ctx context.Context, id string) (auth.Principal, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.Principal{}, fmt.Errorf("%w: %w", auth.ErrUnauthenticated, err)
		}
		return auth.Principal{}, err
	}
	return principalOf(p), nil
}

// View compone datos locales con el EMR. Una falla remota solo marca Degraded.
func (s *Service) View(ctx context.Context, patientID string) (View, error) {
	p, err := s.GetByID(ctx, patientID)
	if err != nil {
		return View{}, err
	}

	encs, err := s.encounters.ListByPatient(ctx, p.ID)
	if err != nil {
		return View{}, fmt.Errorf("list encounters: %w", err)
	}

	ext := s.sync.FetchPatient(ctx, p.ExternalID)
	return View{
		Patient:        p,
		Encounters:     encs,
		External:       ext.Payload,
		Degraded:       ext.Degraded,
		DegradedReason: ext.Reason,
	}, nil
}

type ResyncReport struct {
	Attempted int
	Synced    int
}

// ResyncPending reintenta el alta en el EMR de pacientes sin ExternalID,
// paginando con cursor para que los que fallan no tapen a los siguientes.
func (s *Service) ResyncPending(ctx context.Context, pageSize int) (ResyncReport, error) {
	var (
		rep   ResyncReport
		after SyncCursor
	)
	for {
		items, err := s.repo.ListUnsynced(ctx, after, pageSize)
		if err != nil {
			return rep, fmt.Errorf("list unsynced patients: %w", err)
		}
		for i := range items {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			rep.Attempted++
			if s.mirror(ctx, &items[i]) {
				rep.Synced++
			}
		}
		if pageSize <= 0 || len(items) < pageSize {
			return rep, nil
		}
		last := items[len(items)-1]
		after = SyncCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

func (s *Service) mirror(ctx context.Context, p *Patient) bool {
	extID, ok := s.sync.MirrorPatient(ctx, p.ID, emr.PatientRecord{
		Name:      p.Name,
		Email:     p.Email,
		DOB:       p.DOB,
		Gender:    string(p.Gender),
		Phone:     p.Phone,
		Address:   p.Address,
		Allergies: p.Allergies,
	})
	if !ok || extID == "" {
		return false
	}

	now := s.now()
	if err := s.repo.SetExternalID(ctx, p.ID, extID, now); err != nil {
		s.log.Error("mirrored patient but failed to store external id", map[string]any{
			"patient_id":  p.ID,
			"external_id": extID,
			"err":         err,
		})
		return false
	}
	p.ExternalID = &extID
	p.UpdatedAt = now
	return true
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
