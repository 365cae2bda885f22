package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access/internal/domain/patients"

	"github.com/jmoiron/sqlx"
)

type patientRow struct {
	ID           string          `db:"id"`
	Name         string          `db:"name"`
	Email        string          `db:"email"`
	PasswordHash string          `db:"password_hash"`
	DOB          time.Time       `db:"dob"`
	Gender       string          `db:"gender"`
	Phone        string          `db:"phone"`
	Address      string          `db:"address"`
	Allergies    jsonb[[]string] `db:"allergies"`
	ExternalID   sql.NullString  `db:"external_id"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r patientRow) toDomain() patients.Patient {
	return patients.Patient{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		DOB:          r.DOB,
		Gender:       patients.Gender(r.Gender),
		Phone:        r.Phone,
		Address:      r.Address,
		Allergies:    r.Allergies.V,
		ExternalID:   fromNullString(r.ExternalID),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type PatientsRepo struct {
	db *sqlx.DB
}

func NewPatientsRepo(db *sqlx.DB) *PatientsRepo {
	return &PatientsRepo{db: db}
}

func (r *PatientsRepo) Create(ctx context.Context, p patients.Patient) error {
	allergies := p.Allergies
	if allergies == nil {
		allergies = []string{}
	}
	row := patientRow{
		ID:           p.ID,
		Name:         p.Name,
		Email:        strings.ToLower(p.Email),
		PasswordHash: p.PasswordHash,
		DOB:          p.DOB,
		Gender:       string(p.Gender),
		Phone:        p.Phone,
		Address:      p.Address,
		Allergies:    jsonb[[]string]{V: allergies},
		ExternalID:   toNullString(p.ExternalID),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO patients (
			id, name, email, password_hash,
			dob, gender, phone, address, allergies,
			external_id, created_at, updated_at
		) VALUES (
			:id, :name, :email, :password_hash,
			:dob, :gender, :phone, :address, :allergies,
			:external_id, :created_at, :updated_at
		)
	`, row)
	if err != nil {
		if isUniqueViolation(err, "patients_email_key") {
			return patients.ErrEmailTaken
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *PatientsRepo) GetByID(ctx context.Context, id string) (patients.Patient, error) {
	return r.getOne(ctx, `SELECT * FROM patients WHERE id = $1`, id)
}

func (r *PatientsRepo) GetByEmail(ctx context.Context, email string) (patients.Patient, error) {
	return r.getOne(ctx, `SELECT * FROM patients WHERE email = $1`, strings.ToLower(email))
}

func (r *PatientsRepo) SetExternalID(ctx context.Context, id, externalID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE patients SET external_id = $2, updated_at = $3 WHERE id = $1
	`, id, externalID, at)
	if err != nil {
		return fmt.Errorf("set patient external id: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return patients.ErrNotFound
	}
	return nil
}

func (r *PatientsRepo) ListUnsynced(ctx context.Context, after patients.SyncCursor, limit int) ([]patients.Patient, error) {
	var rows []patientRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM patients
		WHERE external_id IS NULL AND (created_at, id) > ($1::timestamptz, $2::text)
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`, after.CreatedAt, after.ID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("list unsynced patients: %w", err)
	}
	out := make([]patients.Patient, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *PatientsRepo) getOne(ctx context.Context, query string, args ...any) (patients.Patient, error) {
	var row patientRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return patients.Patient{}, patients.ErrNotFound
		}
		return patients.Patient{}, fmt.Errorf("get patient: %w", err)
	}
	return row.toDomain(), nil
}

func toNullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// limitOrAll traduce limit <= 0 a LIMIT NULL (sin tope).
func limitOrAll(limit int) sql.NullInt64 {
	if limit <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(limit), Valid: true}
}
