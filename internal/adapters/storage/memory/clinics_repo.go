package memory

import (
	"context"
	"strings"
	"sync"

	"clinical-access/internal/domain/clinics"
)

type clinicRepo struct {
	mu        sync.RWMutex
	byID      map[string]clinics.Clinic
	idByEmail map[string]string
}

func NewClinicRepo() clinics.Repository {
	return &clinicRepo{
		byID:      make(map[string]clinics.Clinic),
		idByEmail: make(map[string]string),
	}
}

func (r *clinicRepo) Create(_ context.Context, c clinics.Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(c.Email)
	if _, exists := r.idByEmail[key]; exists {
		return clinics.ErrEmailTaken
	}
	r.byID[c.ID] = c
	r.idByEmail[key] = c.ID
	return nil
}

func (r *clinicRepo) GetByID(_ context.Context, id string) (clinics.Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return clinics.Clinic{}, clinics.ErrNotFound
	}
	return c, nil
}

func (r *clinicRepo) GetByEmail(_ context.Context, email string) (clinics.Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idByEmail[strings.ToLower(email)]
	if !ok {
		return clinics.Clinic{}, clinics.ErrNotFound
	}
	return r.byID[id], nil
}
