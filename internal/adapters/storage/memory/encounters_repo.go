package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"clinical-access/internal/domain/encounters"
)

type encounterRepo struct {
	mu   sync.RWMutex
	byID map[string]encounters.Encounter
}

func NewEncounterRepo() encounters.Repository {
	return &encounterRepo{
		byID: make(map[string]encounters.Encounter),
	}
}

func (r *encounterRepo) Create(_ context.Context, e encounters.Encounter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[e.ID] = cloneEncounter(e)
	return nil
}

func (r *encounterRepo) ListByPatient(_ context.Context, patientID string) ([]encounters.Encounter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]encounters.Encounter, 0)
	for _, e := range r.byID {
		if e.PatientID == patientID {
			out = append(out, cloneEncounter(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EncounterDate.After(out[j].EncounterDate) })
	return out, nil
}

func (r *encounterRepo) SetExternalID(_ context.Context, id, externalID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return encounters.ErrNotFound
	}
	ext := externalID
	e.ExternalID = &ext
	e.UpdatedAt = at
	r.byID[id] = e
	return nil
}

func (r *encounterRepo) ListUnsynced(_ context.Context, after encounters.SyncCursor, limit int) ([]encounters.Encounter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]encounters.Encounter, 0)
	for _, e := range r.byID {
		if !e.Synced() && after.Before(e.CreatedAt, e.ID) {
			out = append(out, cloneEncounter(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneEncounter(e encounters.Encounter) encounters.Encounter {
	if e.Symptoms != nil {
		e.Symptoms = append([]string(nil), e.Symptoms...)
	}
	if e.Medications != nil {
		e.Medications = append([]encounters.Medication(nil), e.Medications...)
	}
	if e.ExternalID != nil {
		ext := *e.ExternalID
		e.ExternalID = &ext
	}
	return e
}
