package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinical-access/internal/platform/logger"
	"clinical-access/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type stubVerifier map[string]auth.Principal

func (s stubVerifier) Verify(_ context.Context, credential string) (auth.Principal, error) {
	p, ok := s[credential]
	if !ok {
		return auth.Principal{}, auth.ErrUnauthenticated
	}
	return p, nil
}

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(string(p.Role) + ":" + p.SubjectID))
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthContext_BearerSetsPrincipal(t *testing.T) {
	v := stubVerifier{"good": {SubjectID: "c-1", Role: auth.RoleClinic}}
	h := AuthContext(v, AuthOptions{})(echoPrincipal())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	assert.Equal(t, "clinic:c-1", serve(h, req).Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer bad")
	assert.Equal(t, "anonymous", serve(h, req).Body.String())
}

type brokenVerifier struct{}

func (brokenVerifier) Verify(context.Context, string) (auth.Principal, error) {
	return auth.Principal{}, errors.New("store unreachable")
}

func TestAuthContext_VerifierFailureIs500(t *testing.T) {
	h := AuthContext(brokenVerifier{}, AuthOptions{})(echoPrincipal())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := serve(h, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error\n", rec.Body.String())
}

func TestAuthContext_DebugHeadersOnlyWhenAllowed(t *testing.T) {
	v := stubVerifier{}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", "p-9")
	assert.Equal(t, "anonymous", serve(AuthContext(v, AuthOptions{})(echoPrincipal()), req).Body.String())

	h := AuthContext(v, AuthOptions{AllowDebugHeaders: true})(echoPrincipal())
	assert.Equal(t, "patient:p-9", serve(h, req).Body.String())

	req.Header.Set("X-Debug-Role", "Clinic")
	assert.Equal(t, "clinic:p-9", serve(h, req).Body.String())
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireRole(auth.RoleClinic)(ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)

	req = req.WithContext(WithPrincipal(context.Background(), auth.Principal{SubjectID: "p", Role: auth.RolePatient}))
	assert.Equal(t, http.StatusForbidden, serve(h, req).Code)

	req = req.WithContext(WithPrincipal(context.Background(), auth.Principal{SubjectID: "c", Role: auth.RoleClinic}))
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code)
}

func TestRateLimiter_PerPrincipalBuckets(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Rate: rate.Every(time.Hour), Burst: 2})
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	as := func(id string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(WithPrincipal(req.Context(), auth.Principal{SubjectID: id, Role: auth.RoleClinic}))
	}

	assert.Equal(t, http.StatusOK, serve(h, as("a")).Code)
	assert.Equal(t, http.StatusOK, serve(h, as("a")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, as("a")).Code)

	// otra clínica tiene su propio bucket
	assert.Equal(t, http.StatusOK, serve(h, as("b")).Code)
}

func TestRateLimiter_FallsBackToRemoteIP(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Rate: rate.Every(time.Hour), Burst: 1})
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, http.StatusOK, serve(h, req).Code)

	req.RemoteAddr = "10.0.0.1:5001"
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req).Code)
}

func TestRecover_LogsAndReturns500(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Level: logger.Debug, Format: logger.FormatJSON, Output: &buf})

	h := Recover(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "boom")
}

func TestRequestLogger_UsesRoutePatternNotToken(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Level: logger.Debug, Format: logger.FormatJSON, Output: &buf})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(log))
	r.Get("/access/scan/{token}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	token := "5f0c6f3e-8a4b-4c1d-9e2f-1a2b3c4d5e6f"
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/access/scan/"+token, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	out := buf.String()
	assert.Contains(t, out, "/access/scan/{token}")
	assert.NotContains(t, out, token)
	assert.Contains(t, out, `"status":404`)
}
