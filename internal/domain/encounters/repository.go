package encounters

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, e Encounter) error
	// ListByPatient ordena por EncounterDate descendente.
	ListByPatient(ctx context.Context, patientID string) ([]Encounter, error)
	SetExternalID(ctx context.Context, id, externalID string, at time.Time) error
	// ListUnsynced pagina por (CreatedAt, ID) ascendente los registros sin
	// ExternalID posteriores a after. El cursor cero arranca desde el principio.
	ListUnsynced(ctx context.Context, after SyncCursor, limit int) ([]Encounter, error)
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
