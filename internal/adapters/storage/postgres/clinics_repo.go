package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access/internal/domain/clinics"

	"github.com/jmoiron/sqlx"
)

type clinicRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Hospital     string    `db:"hospital"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type ClinicsRepo struct {
	db *sqlx.DB
}

func NewClinicsRepo(db *sqlx.DB) *ClinicsRepo {
	return &ClinicsRepo{db: db}
}

func (r *ClinicsRepo) Create(ctx context.Context, c clinics.Clinic) error {
	row := clinicRow(c)
	row.Email = strings.ToLower(row.Email)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO clinics (id, name, email, password_hash, hospital, created_at, updated_at)
		VALUES (:id, :name, :email, :password_hash, :hospital, :created_at, :updated_at)
	`, row)
	if err != nil {
		if isUniqueViolation(err, "clinics_email_key") {
			return clinics.ErrEmailTaken
		}
		return fmt.Errorf("insert clinic: %w", err)
	}
	return nil
}

func (r *ClinicsRepo) GetByID(ctx context.Context, id string) (clinics.Clinic, error) {
	return r.getOne(ctx, `SELECT * FROM clinics WHERE id = $1`, id)
}

func (r *ClinicsRepo) GetByEmail(ctx context.Context, email string) (clinics.Clinic, error) {
	return r.getOne(ctx, `SELECT * FROM clinics WHERE email = $1`, strings.ToLower(email))
}

func (r *ClinicsRepo) getOne(ctx context.Context, query string, args ...any) (clinics.Clinic, error) {
	var row clinicRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return clinics.Clinic{}, clinics.ErrNotFound
		}
		return clinics.Clinic{}, fmt.Errorf("get clinic: %w", err)
	}
	return clinics.Clinic(row), nil
}
