package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"clinical-access/internal/domain/accessgrants"
)

type grantRepo struct {
	mu      sync.RWMutex
	byID    map[string]accessgrants.Grant
	idByTok map[string]string
}

func NewAccessGrantsRepo() accessgrants.Repository {
	return &grantRepo{
		byID:    make(map[string]accessgrants.Grant),
		idByTok: make(map[string]string),
	}
}

// Put emula el índice único sobre token: insert-or-fail, nunca overwrite.
func (r *grantRepo) Put(_ context.Context, g accessgrants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.idByTok[g.Token]; exists {
		return accessgrants.ErrDuplicateToken
	}
	if _, exists := r.byID[g.ID]; exists {
		return accessgrants.ErrDuplicateToken
	}
	r.byID[g.ID] = g
	r.idByTok[g.Token] = g.ID
	return nil
}

func (r *grantRepo) GetByToken(_ context.Context, token string) (accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idByTok[token]
	if !ok {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *grantRepo) GetByID(_ context.Context, id string) (accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.byID[id]
	if !ok {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return g, nil
}

func (r *grantRepo) MarkRevoked(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.byID[id]
	if !ok {
		return accessgrants.ErrNotFound
	}
	if !g.IsActive {
		return nil
	}
	g.IsActive = false
	g.UpdatedAt = at
	r.byID[id] = g
	return nil
}

func (r *grantRepo) ListByPatient(_ context.Context, patientID string) ([]accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessgrants.Grant, 0)
	for _, g := range r.byID {
		if g.PatientID == patientID {
			out = append(out, g)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Si hubiera varios grants usables para el par, gana el más reciente.
func (r *grantRepo) FindUsable(_ context.Context, patientID, clinicID string, now time.Time) (accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var winner accessgrants.Grant
	has := false
	for _, g := range r.byID {
		if g.PatientID != patientID || !g.UsableBy(clinicID, now) {
			continue
		}
		if !has || g.CreatedAt.After(winner.CreatedAt) {
			winner = g
			has = true
		}
	}
	if !has {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return winner, nil
}

func (r *grantRepo) ListUsableByClinic(_ context.Context, clinicID string, now time.Time) ([]accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessgrants.Grant, 0)
	for _, g := range r.byID {
		if g.UsableBy(clinicID, now) {
			out = append(out, g)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(gs []accessgrants.Grant) {
	sort.Slice(gs, func(i, j int) bool {
		return gs[i].CreatedAt.After(gs[j].CreatedAt)
	})
}
