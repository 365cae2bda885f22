package accessgrants

import "time"

// State es derivado, nunca se persiste: Expired sale de comparar now con ExpiresAt.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateRevoked State = "revoked"
)

// Grant habilita a una clínica a ver los datos de un paciente hasta ExpiresAt.
type Grant struct {
	ID string

	PatientID string // dueño, inmutable
	ClinicID  string // alcance, inmutable

	Token     string // único global, nunca se reutiliza
	ExpiresAt time.Time
	IsActive  bool // true -> false en revocación, sin vuelta atrás

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StateAt evalúa la expiración en lectura. Expirado tiene prioridad sobre revocado,
// igual que el orden de chequeo en Scan.
func (g Grant) StateAt(now time.Time) State {
	if !now.Before(g.ExpiresAt) {
		return StateExpired
	}
	if !g.IsActive {
		return StateRevoked
	}
	return StateActive
}

func (g Grant) UsableBy(clinicID string, now time.Time) bool {
	return g.StateAt(now) == StateActive && g.ClinicID == clinicID
}

// GrantSummary es lo que ve la clínica: sin token.
type GrantSummary struct {
	ID        string
	PatientID string
	ClinicID  string
	ExpiresAt time.Time
	State     State
	CreatedAt time.Time
}

func (g Grant) Summary(now time.Time) GrantSummary {
	return GrantSummary{
		ID:        g.ID,
		PatientID: g.PatientID,
		ClinicID:  g.ClinicID,
		ExpiresAt: g.ExpiresAt,
		State:     g.StateAt(now),
		CreatedAt: g.CreatedAt,
	}
}
