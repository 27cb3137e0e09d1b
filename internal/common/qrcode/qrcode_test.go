package qrcode

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const link = "https://example.com.br/?ref=ANA2024"

func TestNewGenerator_Size(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultSize},
		{-1, DefaultSize},
		{10, MinSize},
		{320, 320},
		{5000, MaxSize},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewGenerator(tt.in).size, "size %d", tt.in)
	}
}

func TestPNG(t *testing.T) {
	gen := NewGenerator(128)

	data, err := gen.PNG(link)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	again, err := gen.PNG(link)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	other, err := gen.PNG("https://example.com.br/?ref=BIA2024")
	require.NoError(t, err)
	assert.NotEqual(t, data, other)

	_, err = gen.PNG("")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestDataURL(t *testing.T) {
	url, err := NewGenerator(0).DataURL(link)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, dataURLPrefix))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, dataURLPrefix))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())

	_, err = NewGenerator(0).DataURL("")
	assert.ErrorIs(t, err, ErrEmptyContent)
}
