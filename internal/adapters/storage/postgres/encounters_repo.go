package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinical-access/internal/domain/encounters"

	"github.com/jmoiron/sqlx"
)

type medicationCol struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

type vitalsCol struct {
	BloodPressure string `json:"bloodPressure,omitempty"`
	HeartRate     string `json:"heartRate,omitempty"`
	Temperature   string `json:"temperature,omitempty"`
	Weight        string `json:"weight,omitempty"`
	Height        string `json:"height,omitempty"`
}

type encounterRow struct {
	ID            string                 `db:"id"`
	PatientID     string                 `db:"patient_id"`
	ClinicID      string                 `db:"clinic_id"`
	ExternalID    sql.NullString         `db:"external_id"`
	Summary       string                 `db:"summary"`
	Symptoms      jsonb[[]string]        `db:"symptoms"`
	Diagnosis     string                 `db:"diagnosis"`
	Medications   jsonb[[]medicationCol] `db:"medications"`
	Vitals        jsonb[vitalsCol]       `db:"vitals"`
	EncounterDate time.Time              `db:"encounter_date"`
	CreatedAt     time.Time              `db:"created_at"`
	UpdatedAt     time.Time              `db:"updated_at"`
}

func encounterToRow(e encounters.Encounter) encounterRow {
	symptoms := e.Symptoms
	if symptoms == nil {
		symptoms = []string{}
	}
	meds := make([]medicationCol, 0, len(e.Medications))
	for _, m := range e.Medications {
		meds = append(meds, medicationCol(m))
	}
	return encounterRow{
		ID:            e.ID,
		PatientID:     e.PatientID,
		ClinicID:      e.ClinicID,
		ExternalID:    toNullString(e.ExternalID),
		Summary:       e.Summary,
		Symptoms:      jsonb[[]string]{V: symptoms},
		Diagnosis:     e.Diagnosis,
		Medications:   jsonb[[]medicationCol]{V: meds},
		Vitals:        jsonb[vitalsCol]{V: vitalsCol(e.Vitals)},
		EncounterDate: e.EncounterDate,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func (r encounterRow) toDomain() encounters.Encounter {
	meds := make([]encounters.Medication, 0, len(r.Medications.V))
	for _, m := range r.Medications.V {
		meds = append(meds, encounters.Medication(m))
	}
	return encounters.Encounter{
		ID:            r.ID,
		PatientID:     r.PatientID,
		ClinicID:      r.ClinicID,
		ExternalID:    fromNullString(r.ExternalID),
		Summary:       r.Summary,
		Symptoms:      r.Symptoms.V,
		Diagnosis:     r.Diagnosis,
		Medications:   meds,
		Vitals:        encounters.Vitals(r.Vitals.V),
		EncounterDate: r.EncounterDate,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type EncountersRepo struct {
	db *sqlx.DB
}

func NewEncountersRepo(db *sqlx.DB) *EncountersRepo {
	return &EncountersRepo{db: db}
}

func (r *EncountersRepo) Create(ctx context.Context, e encounters.Encounter) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO encounters (
			id, patient_id, clinic_id, external_id,
			summary, symptoms, diagnosis, medications, vitals,
			encounter_date, created_at, updated_at
		) VALUES (
			:id, :patient_id, :clinic_id, :external_id,
			:summary, :symptoms, :diagnosis, :medications, :vitals,
			:encounter_date, :created_at, :updated_at
		)
	`, encounterToRow(e))
	if err != nil {
		return fmt.Errorf("insert encounter: %w", err)
	}
	return nil
}

func (r *EncountersRepo) ListByPatient(ctx context.Context, patientID string) ([]encounters.Encounter, error) {
	return r.list(ctx, `
		SELECT * FROM encounters
		WHERE patient_id = $1
		ORDER BY encounter_date DESC
	`, patientID)
}

func (r *EncountersRepo) SetExternalID(ctx context.Context, id, externalID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE encounters SET external_id = $2, updated_at = $3 WHERE id = $1
	`, id, externalID, at)
	if err != nil {
		return fmt.Errorf("set encounter external id: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return encounters.ErrNotFound
	}
	return nil
}

func (r *EncountersRepo) ListUnsynced(ctx context.Context, after encounters.SyncCursor, limit int) ([]encounters.Encounter, error) {
	return r.list(ctx, `
		SELECT * FROM encounters
		WHERE external_id IS NULL AND (created_at, id) > ($1::timestamptz, $2::text)
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`, after.CreatedAt, after.ID, limitOrAll(limit))
}

func (r *EncountersRepo) list(ctx context.Context, query string, args ...any) ([]encounters.Encounter, error) {
	var rows []encounterRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	out := make([]encounters.Encounter, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
