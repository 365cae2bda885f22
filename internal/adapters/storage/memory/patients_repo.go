package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"clinical-access/internal/domain/patients"
)

type patientRepo struct {
	mu        sync.RWMutex
	byID      map[string]patients.Patient
	idByEmail map[string]string
}

func NewPatientRepo() patients.Repository {
	return &patientRepo{
		byID:      make(map[string]patients.Patient),
		idByEmail: make(map[string]string),
	}
}

func (r *patientRepo) Create(_ context.Context, p patients.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(p.Email)
	if _, exists := r.idByEmail[key]; exists {
		return patients.ErrEmailTaken
	}
	r.byID[p.ID] = clonePatient(p)
	r.idByEmail[key] = p.ID
	return nil
}

func (r *patientRepo) GetByID(_ context.Context, id string) (patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return patients.Patient{}, patients.ErrNotFound
	}
	return clonePatient(p), nil
}

func (r *patientRepo) GetByEmail(_ context.Context, email string) (patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idByEmail[strings.ToLower(email)]
	if !ok {
		return patients.Patient{}, patients.ErrNotFound
	}
	return clonePatient(r.byID[id]), nil
}

func (r *patientRepo) SetExternalID(_ context.Context, id, externalID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return patients.ErrNotFound
	}
	ext := externalID
	p.ExternalID = &ext
	p.UpdatedAt = at
	r.byID[id] = p
	return nil
}

func (r *patientRepo) ListUnsynced(_ context.Context, after patients.SyncCursor, limit int) ([]patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]patients.Patient, 0)
	for _, p := range r.byID {
		if !p.Synced() && after.Before(p.CreatedAt, p.ID) {
			out = append(out, clonePatient(p))
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

func clonePatient(p patients.Patient) patients.Patient {
	if p.Allergies != nil {
		p.Allergies = append([]string(nil), p.Allergies...)
	}
	if p.ExternalID != nil {
		ext := *p.ExternalID
		p.ExternalID = &ext
	}
	return p
}
