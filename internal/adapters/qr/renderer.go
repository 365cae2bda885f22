package qr

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// Renderer genera PNGs con go-qrcode.
type Renderer struct {
	Size  int
	Level qrcode.RecoveryLevel
}

func NewRenderer() *Renderer {
	return &Renderer{Size: DefaultSize, Level: qrcode.Medium}
}

func (r *Renderer) Render(token string) ([]byte, error) {
	if token == "" {
		return nil, errors.New("qr: empty content")
	}
	size := r.Size
	if size == 0 {
		size = DefaultSize
	}
	return qrcode.Encode(token, r.Level, size)
}
