package clinics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access/internal/domain/emrsync"
	"clinical-access/internal/ports/auth"

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

type Service struct {
	repo Repository
	sync *emrsync.Adapter

	now        func() time.Time
	bcryptCost int
}

func NewService(repo Repository, sync *emrsync.Adapter) *Service {
	return &Service{
		repo:       repo,
		sync:       sync,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Hospital string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Clinic, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hospital := strings.TrimSpace(in.Hospital)
	if name == "" || email == "" || hospital == "" || len(in.Password) < minPasswordLen {
		return Clinic{}, ErrInvalidInput
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return Clinic{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return Clinic{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return Clinic{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	c := Clinic{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Hospital:     hospital,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return Clinic{}, ErrEmailTaken
		}
		return Clinic{}, fmt.Errorf("create clinic: %w", err)
	}
	return c, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (Clinic, error) {
	c, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Clinic{}, ErrInvalidCredentials
		}
		return Clinic{}, fmt.Errorf("lookup email: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		return Clinic{}, ErrInvalidCredentials
	}
	return c, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Clinic, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Clinic{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Principal(ctx context.Context, id string) (auth.Principal, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.Principal{}, fmt.Errorf("%w: %w", auth.ErrUnauthenticated, err)
		}
		return auth.Principal{}, err
	}
	return principalOf(c), nil
}

// CheckPrescription consulta interacciones en el EMR. Con menos de dos
// medicamentos no hay nada que cruzar y no se llama al EMR.
func (s *Service) CheckPrescription(ctx context.Context, medications []string) (json.RawMessage, error) {
	meds := make([]string, 0, len(medications))
	for _, m := range medications {
		if m = strings.TrimSpace(m); m != "" {
			meds = append(meds, m)
		}
	}
	if len(meds) == 0 {
		return nil, ErrInvalidInput
	}
	if len(meds) < 2 {
		return json.Marshal(map[string]any{
			"medications":     meds,
			"interactions":    []any{},
			"severity":        "none",
			"recommendations": []string{"Single medication - no interactions to check"},
		})
	}
	return s.sync.CheckInteractions(ctx, meds)
}

func principalOf(c Clinic) auth.Principal {
	return auth.Principal{SubjectID: c.ID, Role: auth.RoleClinic, Email: c.Email}
}
