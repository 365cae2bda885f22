package encounters

import (
	"strings"

	"clinical-access/internal/ports/emr"
)

func toEMRRecord(externalPatientID string, e Encounter) emr.EncounterRecord {
	meds := make([]emr.Medication, 0, len(e.Medications))
	for _, m := range e.Medications {
		meds = append(meds, emr.Medication{Name: m.Name, Dosage: m.Dosage, Frequency: m.Frequency})
	}
	return emr.EncounterRecord{
		ExternalPatientID: externalPatientID,
		Summary:           e.Summary,
		Symptoms:          e.Symptoms,
		Diagnosis:         e.Diagnosis,
		Medications:       meds,
		Vitals: emr.Vitals{
			BloodPressure: e.Vitals.BloodPressure,
			HeartRate:     e.Vitals.HeartRate,
			Temperature:   e.Vitals.Temperature,
			Weight:        e.Vitals.Weight,
			Height:        e.Vitals.Height,
		},
	}
}

func fromEMRMedications(in []emr.Medication) []Medication {
	out := make([]Medication, 0, len(in))
	for _, m := range in {
		out = append(out, Medication{Name: m.Name, Dosage: m.Dosage, Frequency: m.Frequency})
	}
	return cleanMedications(out)
}

func fromEMRVitals(v emr.Vitals) Vitals {
	return Vitals{
		BloodPressure: v.BloodPressure,
		HeartRate:     v.HeartRate,
		Temperature:   v.Temperature,
		Weight:        v.Weight,
		Height:        v.Height,
	}
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cleanMedications(in []Medication) []Medication {
	out := make([]Medication, 0, len(in))
	for _, m := range in {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			continue
		}
		m.Dosage = strings.TrimSpace(m.Dosage)
		m.Frequency = strings.TrimSpace(m.Frequency)
		out = append(out, m)
	}
	return out
}
