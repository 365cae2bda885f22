package memory

import (
	"context"
	"sort"
	"sync"

	"clinical-access/internal/domain/symptoms"
)

type symptomRepo struct {
	mu        sync.RWMutex
	byPatient map[string][]symptoms.Log
}

func NewSymptomRepo() symptoms.Repository {
	return &symptomRepo{byPatient: make(map[string][]symptoms.Log)}
}

func (r *symptomRepo) Create(_ context.Context, l symptoms.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byPatient[l.PatientID] = append(r.byPatient[l.PatientID], l)
	return nil
}

func (r *symptomRepo) ListByPatient(_ context.Context, patientID string) ([]symptoms.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]symptoms.Log{}, r.byPatient[patientID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].LoggedAt.After(out[j].LoggedAt) })
	return out, nil
}
