package jwtauth

import (
	"context"
	"fmt"

	"clinical-access/internal/ports/auth"
)

// SubjectFinder lo implementan patients.Service y clinics.Service.
type SubjectFinder interface {
	Principal(ctx context.Context, subjectID string) (auth.Principal, error)
}

// RoleLookup despacha la búsqueda según el rol del token.
type RoleLookup map[auth.Role]SubjectFinder

func (l RoleLookup) Lookup(ctx context.Context, role auth.Role, subjectID string) (auth.Principal, error) {
	finder, ok := l[role]
	if !ok || finder == nil {
		return auth.Principal{}, fmt.Errorf("%w: no lookup for role %q", auth.ErrUnauthenticated, role)
	}
	p, err := finder.Principal(ctx, subjectID)
	if err != nil {
		return auth.Principal{}, err
	}
	if p.Role != role {
		return auth.Principal{}, fmt.Errorf("%w: role mismatch for %s", auth.ErrUnauthenticated, subjectID)
	}
	return p, nil
}
