package clinics

import "context"

type Repository interface {
	// Create falla con ErrEmailTaken si el email ya existe.
	Create(ctx context.Context, c Clinic) error
	GetByID(ctx context.Context, id string) (Clinic, error)
	GetByEmail(ctx context.Context, email string) (Clinic, error)
}
