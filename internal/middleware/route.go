package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routePattern devuelve el patrón chi (/access/scan/{token}) en lugar del path real,
// así el token del QR no aparece en los logs.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
