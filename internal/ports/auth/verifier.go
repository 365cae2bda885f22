package auth

import "context"

// AuthVerifier resuelve una credencial (bearer) en un Principal o ErrUnauthenticated.
type AuthVerifier interface {
	Verify(ctx context.Context, credential string) (Principal, error)
}

// PrincipalLookup confirma que el sujeto de una credencial sigue existiendo.
// Un sujeto ausente devuelve ErrUnauthenticated; otros errores son fallas del store.
type PrincipalLookup interface {
	Lookup(ctx context.Context, role Role, subjectID string) (Principal, error)
}

// CredentialIssuer firma una credencial para un principal recién autenticado.
type CredentialIssuer interface {
	Issue(p Principal) (string, error)
}
