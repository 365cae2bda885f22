package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"clinical-access/internal/platform/logger"
	"clinical-access/internal/ports/auth"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const principalKey ctxKey = "principal"

type AuthOptions struct {
	// AllowDebugHeaders habilita X-Debug-User-ID / X-Debug-Role aunque haya
	// verifier. Es opt-in explícito; config lo restringe a development.
	AllowDebugHeaders bool
	Logger            logger.Logger
}

// AuthContext:
// - Si viene Bearer token y hay verifier => intenta Verify() y setea el principal.
//   Si Verify falla por algo distinto de ErrUnauthenticated responde 500.
// - Si AllowDebugHeaders (o no hay verifier) => acepta X-Debug-User-ID + X-Debug-Role.
// - Si no hay principal, el request sigue igual; handlers y RequireRole deciden 401/403.
func AuthContext(verifier auth.AuthVerifier, opts AuthOptions) func(http.Handler) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	debug := opts.AllowDebugHeaders || verifier == nil

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r.Header.Get("Authorization")); token != "" && verifier != nil {
				p, err := verifier.Verify(r.Context(), token)
				if err != nil {
					if !errors.Is(err, auth.ErrUnauthenticated) {
						log.Error("credential verification failed", map[string]any{
							"request_id": chimw.GetReqID(r.Context()),
							"err":        err,
						})
						http.Error(w, "internal error", http.StatusInternalServerError)
						return
					}
					// No cortamos aquí. El handler decide 401/403.
					log.Debug("credential rejected", map[string]any{"err": err})
					next.ServeHTTP(w, r)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
				return
			}

			if debug {
				uid := strings.TrimSpace(r.Header.Get("X-Debug-User-ID"))
				role, ok := auth.ParseRole(r.Header.Get("X-Debug-Role"))
				if !ok {
					role = auth.RolePatient
				}
				if uid != "" {
					p := auth.Principal{SubjectID: uid, Role: role}
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func GetPrincipal(ctx context.Context) (auth.Principal, bool) {
	v := ctx.Value(principalKey)
	if v == nil {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	if !ok || !p.Valid() {
		return auth.Principal{}, false
	}
	return p, true
}

func bearerToken(authHeader string) string {
	if strings.TrimSpace(authHeader) == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
