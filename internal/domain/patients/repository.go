package patients

import (
	"context"
	"time"
)

type Repository interface {
	// Create falla con ErrEmailTaken si el email ya existe.
	Create(ctx context.Context, p Patient) error
	GetByID(ctx context.Context, id string) (Patient, error)
	GetByEmail(ctx context.Context, email string) (Patient, error)
	SetExternalID(ctx context.Context, id, externalID string, at time.Time) error
	// ListUnsynced pagina por (CreatedAt, ID) ascendente los registros sin
	// ExternalID posteriores a after. El cursor cero arranca desde el principio.
	ListUnsynced(ctx context.Context, after SyncCursor, limit int) ([]Patient, error)
}

// SyncCursor marca la última fila vista al paginar pendientes de sync.
type SyncCursor struct {
	CreatedAt time.Time
	ID        string
}

// Before indica si (createdAt, id) queda estrictamente después del cursor.
func (c SyncCursor) Before(createdAt time.Time, id string) bool {
	if !createdAt.Equal(c.CreatedAt) {
		return c.CreatedAt.Before(createdAt)
	}
	return c.ID < id
}
