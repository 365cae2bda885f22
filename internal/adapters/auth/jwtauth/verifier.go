package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
)

var ErrTokenEmpty = errors.New("token is empty")

// Verifier implementa auth.AuthVerifier: valida la firma y confirma que el
// sujeto sigue existiendo. Los principals resueltos se cachean por TTL.
type Verifier struct {
	secret []byte
	lookup auth.PrincipalLookup
	cache  *cache.Cache
	now    func() time.Time
}

func NewVerifier(secret []byte, lookup auth.PrincipalLookup, cacheTTL time.Duration) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Verifier{
		secret: secret,
		lookup: lookup,
		cache:  cache.New(cacheTTL, 2*cacheTTL),
		now:    time.Now,
	}, nil
}

func (v *Verifier) Verify(ctx context.Context, credential string) (auth.Principal, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return auth.Principal{}, fmt.Errorf("%w: %w", auth.ErrUnauthenticated, ErrTokenEmpty)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil || !token.Valid {
		return auth.Principal{}, fmt.Errorf("%w: %v", auth.ErrUnauthenticated, err)
	}

	role, ok := auth.ParseRole(claims.UserType)
	subject := strings.TrimSpace(claims.ID)
	if !ok || subject == "" {
		return auth.Principal{}, fmt.Errorf("%w: claims missing id or userType", auth.ErrUnauthenticated)
	}

	key := string(role) + ":" + subject
	if cached, found := v.cache.Get(key); found {
		return cached.(auth.Principal), nil
	}

	if v.lookup == nil {
		return auth.Principal{SubjectID: subject, Role: role}, nil
	}
	p, err := v.lookup.Lookup(ctx, role, subject)
	if err != nil {
		// Solo un sujeto inexistente es 401; una caída del store no.
		if errors.Is(err, auth.ErrUnauthenticated) {
			return auth.Principal{}, err
		}
		return auth.Principal{}, fmt.Errorf("lookup principal: %w", err)
	}

	v.cache.SetDefault(key, p)
	return p, nil
}
