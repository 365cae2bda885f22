package patients

import (
	"encoding/json"
	"time"

	"clinical-access/internal/domain/encounters"
)

// Gender sigue los valores que acepta el EMR.
// @Enum Male, Female, Other
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

func ParseGender(s string) (Gender, bool) {
	switch Gender(s) {
	case "":
		return GenderMale, true
	case GenderMale, GenderFemale, GenderOther:
		return Gender(s), true
	default:
		return "", false
	}
}

// Patient es el perfil local. ExternalID es nil mientras no haya sincronización exitosa.
type Patient struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string

	DOB       time.Time
	Gender    Gender
	Phone     string
	Address   string
	Allergies []string

	ExternalID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Patient) Synced() bool {
	return p.ExternalID != nil && *p.ExternalID != ""
}

// View es la lectura compuesta: datos locales siempre, EMR si respondió.
type View struct {
	Patient    Patient
	Encounters []encounters.Encounter

	External       json.RawMessage
	Degraded       bool
	DegradedReason string
}
