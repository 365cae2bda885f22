package symptoms

import "context"

type Repository interface {
	Create(ctx context.Context, l Log) error
	// ListByPatient ordena por LoggedAt descendente.
	ListByPatient(ctx context.Context, patientID string) ([]Log, error)
}
