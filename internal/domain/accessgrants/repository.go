package accessgrants

import (
	"context"
	"time"
)

// Repository persiste grants. Las implementaciones devuelven ErrNotFound y
// ErrDuplicateToken de este paquete; cualquier otro error es falla del store.
type Repository interface {
	// Put falla con ErrDuplicateToken si el token ya existe (constraint del store).
	Put(ctx context.Context, g Grant) error
	GetByToken(ctx context.Context, token string) (Grant, error)
	GetByID(ctx context.Context, id string) (Grant, error)
	// MarkRevoked es idempotente; solo falla con ErrNotFound si el id no existe.
	MarkRevoked(ctx context.Context, id string, at time.Time) error

	ListByPatient(ctx context.Context, patientID string) ([]Grant, error)
	// FindUsable devuelve el grant activo y no expirado más reciente para el par.
	FindUsable(ctx context.Context, patientID, clinicID string, now time.Time) (Grant, error)
	ListUsableByClinic(ctx context.Context, clinicID string, now time.Time) ([]Grant, error)
}
