package postgres

import (
	"context"
	"fmt"
	"time"

	"clinical-access/internal/domain/symptoms"

	"github.com/jmoiron/sqlx"
)

type symptomRow struct {
	ID        string    `db:"id"`
	PatientID string    `db:"patient_id"`
	Symptom   string    `db:"symptom"`
	Severity  string    `db:"severity"`
	Notes     string    `db:"notes"`
	LoggedAt  time.Time `db:"logged_at"`
	CreatedAt time.Time `db:"created_at"`
}

type SymptomsRepo struct {
	db *sqlx.DB
}

func NewSymptomsRepo(db *sqlx.DB) *SymptomsRepo {
	return &SymptomsRepo{db: db}
}

func (r *SymptomsRepo) Create(ctx context.Context, l symptoms.Log) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO symptom_logs (id, patient_id, symptom, severity, notes, logged_at, created_at)
		VALUES (:id, :patient_id, :symptom, :severity, :notes, :logged_at, :created_at)
	`, symptomRow{
		ID:        l.ID,
		PatientID: l.PatientID,
		Symptom:   l.Symptom,
		Severity:  string(l.Severity),
		Notes:     l.Notes,
		LoggedAt:  l.LoggedAt,
		CreatedAt: l.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert symptom log: %w", err)
	}
	return nil
}

func (r *SymptomsRepo) ListByPatient(ctx context.Context, patientID string) ([]symptoms.Log, error) {
	var rows []symptomRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM symptom_logs
		WHERE patient_id = $1
		ORDER BY logged_at DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list symptom logs: %w", err)
	}
	out := make([]symptoms.Log, 0, len(rows))
	for _, row := range rows {
		out = append(out, symptoms.Log{
			ID:        row.ID,
			PatientID: row.PatientID,
			Symptom:   row.Symptom,
			Severity:  symptoms.Severity(row.Severity),
			Notes:     row.Notes,
			LoggedAt:  row.LoggedAt,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}
