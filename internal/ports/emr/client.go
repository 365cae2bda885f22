package emr

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Clases de falla del EMR externo. Todo error de un Client debe envolver una de estas.
var (
	ErrUnavailable = errors.New("external emr unavailable")
	ErrRejected    = errors.New("external emr rejected request")
	ErrExternal    = errors.New("external emr error")
)

// Client es el set acotado de operaciones contra el EMR autoritativo.
type Client interface {
	// CreateRecord da de alta al paciente en el EMR.
	CreateRecord(ctx context.Context, in PatientRecord) (Result, error)
	// FetchRecord trae el registro del paciente por su id externo.
	FetchRecord(ctx context.Context, externalID string) (Result, error)
	// CreateSubRecord registra un encuentro clínico del paciente.
	CreateSubRecord(ctx context.Context, in EncounterRecord) (Result, error)
	// Extract convierte texto libre en datos clínicos estructurados (sincrónico).
	Extract(ctx context.Context, text string, externalPatientID string) (Extraction, error)
	// CheckInteractions consulta interacciones entre medicamentos.
	CheckInteractions(ctx context.Context, medications []string) (json.RawMessage, error)
}

type Result struct {
	ExternalID string
	Payload    json.RawMessage
}

type PatientRecord struct {
	Name      string
	Email     string
	DOB       time.Time
	Gender    string
	Phone     string
	Address   string
	Allergies []string
}

type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

type Vitals struct {
	BloodPressure string `json:"bloodPressure,omitempty"`
	HeartRate     string `json:"heartRate,omitempty"`
	Temperature   string `json:"temperature,omitempty"`
	Weight        string `json:"weight,omitempty"`
	Height        string `json:"height,omitempty"`
}

type EncounterRecord struct {
	ExternalPatientID string
	Summary           string
	Symptoms          []string
	Diagnosis         string
	Medications       []Medication
	Vitals            Vitals
}

// ResourceEncounter es el tipo de recurso que Extract puede crear y que reflejamos localmente.
const ResourceEncounter = "Encounter"

type Extraction struct {
	Resource   string
	ExternalID string

	ChiefComplaint string
	Symptoms       []string
	Diagnosis      string
	Medications    []Medication
	Vitals         Vitals

	Raw json.RawMessage
}
