package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_ProducesPNG(t *testing.T) {
	img, err := NewRenderer().Render("0b7a4a53-2d3c-4f6b-9a51-3a2c1e0f9d11")
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, decoded.Bounds().Dx())
}

func TestRender_EmptyToken(t *testing.T) {
	_, err := NewRenderer().Render("")
	assert.Error(t, err)
}
