package jwtauth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"clinical-access/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTTL = 30 * 24 * time.Hour

var ErrNoSecret = errors.New("jwt secret is empty")

// Issuer firma credenciales HS256.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

func (i *Issuer) Issue(p auth.Principal) (string, error) {
	if !p.Valid() {
		return "", fmt.Errorf("issue credential: invalid principal")
	}
	now := i.now()
	claims := Claims{
		ID:       p.SubjectID,
		UserType: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// EphemeralSecret genera un secreto aleatorio para desarrollo sin JWT_SECRET.
// Las credenciales dejan de valer al reiniciar el proceso.
func EphemeralSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
