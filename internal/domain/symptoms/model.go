package symptoms

import "time"

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// ParseSeverity acepta vacío como moderate.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case "":
		return SeverityModerate, true
	case SeverityMild, SeverityModerate, SeveritySevere:
		return Severity(s), true
	default:
		return "", false
	}
}

// Log es una entrada de síntoma que carga el propio paciente. No se refleja en el EMR.
type Log struct {
	ID        string
	PatientID string
	Symptom   string
	Severity  Severity
	Notes     string

	LoggedAt  time.Time
	CreatedAt time.Time
}
