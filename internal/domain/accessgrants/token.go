package accessgrants

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTokenGeneration = errors.New("token generation failed")
	ErrRender          = errors.New("token render failed")
)

// Renderer convierte un token en una imagen escaneable (PNG).
type Renderer interface {
	Render(token string) ([]byte, error)
}

type TokenGenerator struct {
	renderer Renderer
	newUUID  func() (uuid.UUID, error)
}

func NewTokenGenerator(renderer Renderer) *TokenGenerator {
	return &TokenGenerator{
		renderer: renderer,
		newUUID:  uuid.NewRandom,
	}
}

// Issue genera un UUID v4 (122 bits aleatorios) y su QR.
func (g *TokenGenerator) Issue() (string, []byte, error) {
	id, err := g.newUUID()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrTokenGeneration, err)
	}
	token := id.String()

	if g.renderer == nil {
		return "", nil, fmt.Errorf("%w: no renderer configured", ErrRender)
	}
	img, err := g.renderer.Render(token)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return token, img, nil
}

// NormalizeToken valida que sea un UUID v4 en forma canónica (36 chars, cualquier
// caja) y lo devuelve en minúscula, que es como se persiste.
func NormalizeToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 36 {
		return "", ErrInvalidFormat
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidFormat
	}
	if id.Version() != 4 || id.Variant() != uuid.RFC4122 {
		return "", ErrInvalidFormat
	}
	return id.String(), nil
}
