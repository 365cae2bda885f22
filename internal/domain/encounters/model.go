package encounters

import "time"

type Medication struct {
	Name      string
	Dosage    string
	Frequency string
}

type Vitals struct {
	BloodPressure string
	HeartRate     string
	Temperature   string
	Weight        string
	Height        string
}

// Encounter es la copia local de una consulta. ExternalID queda nil hasta
// que el EMR confirma el alta; se completa in-place en una sincronización posterior.
type Encounter struct {
	ID         string
	PatientID  string
	ClinicID   string // vacío si lo cargó el propio paciente
	ExternalID *string

	Summary     string
	Symptoms    []string
	Diagnosis   string
	Medications []Medication
	Vitals      Vitals

	EncounterDate time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (e Encounter) Synced() bool {
	return e.ExternalID != nil && *e.ExternalID != ""
}
