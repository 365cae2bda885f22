package encounters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access/internal/domain/emrsync"
	"clinical-access/internal/platform/logger"
	"clinical-access/internal/ports/emr"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrPatientNotSynced = errors.New("patient not synced with external EMR")
)

// PatientLookup evita importar el paquete patients (rompe ciclos).
type PatientLookup interface {
	ExternalIDOf(ctx context.Context, patientID string) (*string, error)
}

type Service struct {
	repo     Repository
	patients PatientLookup
	sync     *emrsync.Adapter
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientLookup, sync *emrsync.Adapter, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     repo,
		patients: patients,
		sync:     sync,
		log:      log.With(map[string]any{"component": "encounters"}),
		now:      time.Now,
	}
}

type CreateInput struct {
	ClinicID      string
	Summary       string
	Symptoms      []string
	Diagnosis     string
	Medications   []Medication
	Vitals        Vitals
	EncounterDate *time.Time
}

// Create guarda local primero (autoritativo) y después intenta un único espejo en el EMR.
func (s *Service) Create(ctx context.Context, patientID string, in CreateInput) (Encounter, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return Encounter{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Summary) == "" && strings.TrimSpace(in.Diagnosis) == "" && len(in.Symptoms) == 0 {
		return Encounter{}, ErrInvalidInput
	}

	now := s.now()
	e := Encounter{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		ClinicID:    strings.TrimSpace(in.ClinicID),
		Summary:     strings.TrimSpace(in.Summary),
		Symptoms:    cleanStrings(in.Symptoms),
		Diagnosis:   strings.TrimSpace(in.Diagnosis),
		Medications: cleanMedications(in.Medications),
		Vitals:      in.Vitals,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e.EncounterDate = now
	if in.EncounterDate != nil {
		e.EncounterDate = *in.EncounterDate
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return Encounter{}, fmt.Errorf("create encounter: %w", err)
	}

	s.mirror(ctx, &e)
	return e, nil
}

// TextResult es lo que devolvió la extracción. Encounter es nil si el EMR
// creó otro tipo de recurso (p.ej. Appointment).
type TextResult struct {
	Resource  string
	Raw       json.RawMessage
	Encounter *Encounter
}

// CreateFromText es sincrónico: sin EMR no hay datos estructurados que guardar,
// así que cualquier falla remota aborta sin escribir nada local.
func (s *Service) CreateFromText(ctx context.Context, patientID, clinicID, text string) (TextResult, error) {
	patientID = strings.TrimSpace(patientID)
	text = strings.TrimSpace(text)
	if patientID == "" || text == "" {
		return TextResult{}, ErrInvalidInput
	}

	extID, err := s.patients.ExternalIDOf(ctx, patientID)
	if err != nil {
		return TextResult{}, fmt.Errorf("lookup patient: %w", err)
	}
	if extID == nil || strings.TrimSpace(*extID) == "" {
		return TextResult{}, ErrPatientNotSynced
	}

	out, err := s.sync.Extract(ctx, text, *extID)
	if err != nil {
		return TextResult{}, err
	}

	res := TextResult{Resource: out.Resource, Raw: out.Raw}
	if out.Resource != emr.ResourceEncounter {
		return res, nil
	}

	now := s.now()
	e := Encounter{
		ID:            uuid.NewString(),
		PatientID:     patientID,
		ClinicID:      strings.TrimSpace(clinicID),
		Summary:       out.ChiefComplaint,
		Symptoms:      cleanStrings(out.Symptoms),
		Diagnosis:     out.Diagnosis,
		Medications:   fromEMRMedications(out.Medications),
		Vitals:        fromEMRVitals(out.Vitals),
		EncounterDate: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if out.ExternalID != "" {
		id := out.ExternalID
		e.ExternalID = &id
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return TextResult{}, fmt.Errorf("create encounter: %w", err)
	}
	res.Encounter = &e
	return res, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Encounter, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPatient(ctx, patientID)
}

type ResyncReport struct {
	Attempted int
	Synced    int
}

// ResyncPending recorre en páginas de pageSize todos los encuentros sin
// ExternalID y reintenta el espejo una vez por cada uno. Los de pacientes aún
// no sincronizados se saltean sin frenar el avance del cursor.
func (s *Service) ResyncPending(ctx context.Context, pageSize int) (ResyncReport, error) {
	var (
		rep   ResyncReport
		after SyncCursor
	)
	for {
		items, err := s.repo.ListUnsynced(ctx, after, pageSize)
		if err != nil {
			return rep, fmt.Errorf("list unsynced encounters: %w", err)
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

// mirror no devuelve error: el registro local ya está confirmado.
func (s *Service) mirror(ctx context.Context, e *Encounter) bool {
	extPatient, err := s.patients.ExternalIDOf(ctx, e.PatientID)
	if err != nil {
		s.log.Warn("patient lookup failed, encounter left pending", map[string]any{
			"encounter_id": e.ID,
			"err":          err,
		})
		return false
	}
	if extPatient == nil || *extPatient == "" {
		return false
	}

	extID, ok := s.sync.MirrorEncounter(ctx, e.ID, toEMRRecord(*extPatient, *e))
	if !ok || extID == "" {
		return false
	}

	now := s.now()
	if err := s.repo.SetExternalID(ctx, e.ID, extID, now); err != nil {
		s.log.Error("mirrored encounter but failed to store external id", map[string]any{
			"encounter_id": e.ID,
			"external_id":  extID,
			"err":          err,
		})
		return false
	}
	e.ExternalID = &extID
	e.UpdatedAt = now
	return true
}
