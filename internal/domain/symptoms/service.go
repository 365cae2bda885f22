package symptoms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("invalid input")

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

type LogInput struct {
	Symptom  string
	Severity string
	Notes    string
}

func (s *Service) Record(ctx context.Context, patientID string, in LogInput) (Log, error) {
	patientID = strings.TrimSpace(patientID)
	symptom := strings.TrimSpace(in.Symptom)
	if patientID == "" || symptom == "" {
		return Log{}, ErrInvalidInput
	}
	sev, ok := ParseSeverity(strings.ToLower(strings.TrimSpace(in.Severity)))
	if !ok {
		return Log{}, ErrInvalidInput
	}

	now := s.now()
	l := Log{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Symptom:   symptom,
		Severity:  sev,
		Notes:     strings.TrimSpace(in.Notes),
		LoggedAt:  now,
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return Log{}, fmt.Errorf("create symptom log: %w", err)
	}
	return l, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Log, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPatient(ctx, patientID)
}
