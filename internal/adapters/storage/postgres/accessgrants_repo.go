package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access/internal/domain/accessgrants"
)

const grantColumns = `id, patient_id, clinic_id, token, expires_at, is_active, created_at, updated_at`

type AccessGrantsRepo struct {
	db *sql.DB
}

func NewAccessGrantsRepo(db *sql.DB) *AccessGrantsRepo {
	return &AccessGrantsRepo{db: db}
}

func (r *AccessGrantsRepo) Put(ctx context.Context, g accessgrants.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_grants (`+grantColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		g.ID,
		g.PatientID,
		g.ClinicID,
		g.Token,
		g.ExpiresAt,
		g.IsActive,
		g.CreatedAt,
		g.UpdatedAt,
	)
	if err != nil {
		// el PK sobre id también cuenta: en ambos casos el caller reintenta con otro token
		if isUniqueViolation(err, "") {
			return accessgrants.ErrDuplicateToken
		}
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

func (r *AccessGrantsRepo) GetByToken(ctx context.Context, token string) (accessgrants.Grant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+grantColumns+` FROM access_grants WHERE token = $1`, token)
}

func (r *AccessGrantsRepo) GetByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+grantColumns+` FROM access_grants WHERE id = $1`, id)
}

// MarkRevoked solo toca updated_at en la transición real true -> false,
// así la segunda revocación no altera nada.
func (r *AccessGrantsRepo) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_grants
		SET
			updated_at = CASE WHEN is_active THEN $2 ELSE updated_at END,
			is_active = FALSE
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessgrants.ErrNotFound
	}
	return nil
}

func (r *AccessGrantsRepo) ListByPatient(ctx context.Context, patientID string) ([]accessgrants.Grant, error) {
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
}

func (r *AccessGrantsRepo) FindUsable(ctx context.Context, patientID, clinicID string, now time.Time) (accessgrants.Grant, error) {
	return r.getOne(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE patient_id = $1
		  AND clinic_id = $2
		  AND is_active
		  AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`, patientID, clinicID, now)
}

func (r *AccessGrantsRepo) ListUsableByClinic(ctx context.Context, clinicID string, now time.Time) ([]accessgrants.Grant, error) {
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE clinic_id = $1
		  AND is_active
		  AND expires_at > $2
		ORDER BY created_at DESC
	`, clinicID, now)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (accessgrants.Grant, error) {
	var g accessgrants.Grant
	err := row.Scan(
		&g.ID,
		&g.PatientID,
		&g.ClinicID,
		&g.Token,
		&g.ExpiresAt,
		&g.IsActive,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	return g, err
}

func (r *AccessGrantsRepo) getOne(ctx context.Context, query string, args ...any) (accessgrants.Grant, error) {
	g, err := scanGrant(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accessgrants.Grant{}, accessgrants.ErrNotFound
		}
		return accessgrants.Grant{}, fmt.Errorf("get grant: %w", err)
	}
	return g, nil
}

func (r *AccessGrantsRepo) list(ctx context.Context, query string, args ...any) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	out := make([]accessgrants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
