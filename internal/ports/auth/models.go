package auth

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthenticated: credencial ausente, mal formada o de un principal que ya no existe.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden: principal válido pero sin rol o propiedad para la operación.
	ErrForbidden = errors.New("forbidden")
)

type Role string

const (
	RolePatient Role = "patient"
	RoleClinic  Role = "clinic"
)

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePatient:
		return RolePatient, true
	case RoleClinic:
		return RoleClinic, true
	default:
		return "", false
	}
}

// Principal es quien llama: un paciente o una clínica.
// Las reglas de autorización hacen switch sobre Role, no sobre tipos distintos.
type Principal struct {
	SubjectID string
	Role      Role
	Email     string
}

func (p Principal) Valid() bool {
	if strings.TrimSpace(p.SubjectID) == "" {
		return false
	}
	_, ok := ParseRole(string(p.Role))
	return ok
}

func (p Principal) Is(role Role) bool {
	return p.Valid() && p.Role == role
}
