// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transform

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradient creates an image where R=x, G=y and B=x+y (modulo 256).
func gradient(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 0xFF})
		}
	}
	return img
}

func TestGeometry(t *testing.T) {
	w, h := ResizedSize(64, 64)
	assert.Equal(t, 64, w)
	assert.Equal(t, 64, h)
	assert.Equal(t, image.Rect(4, 4, 60, 60), CropBox(w, h))

	// 64/375 * 500 = 85.33 -> 85.
	w, h = ResizedSize(500, 375)
	assert.Equal(t, 85, w)
	assert.Equal(t, 64, h)
	assert.Equal(t, image.Rect(14, 4, 70, 60), CropBox(w, h))

	// 64/3 * 5 = 106.67 -> 107, rounding half-up.
	w, h = ResizedSize(3, 5)
	assert.Equal(t, 64, w)
	assert.Equal(t, 107, h)
	assert.Equal(t, image.Rect(4, 25, 60, 81), CropBox(w, h))
}

func TestTransformSquare(t *testing.T) {
	tensor, err := Transform(gradient(64, 64))
	require.NoError(t, err)
	assert.Equal(t, CropSize, tensor.Height)
	assert.Equal(t, CropSize, tensor.Width)
	assert.Equal(t, Channels, tensor.Channels)
	require.Len(t, tensor.Data, CropSize*CropSize*Channels)

	// Factor is 1.0, so the tensor is exactly the (4,4)-(60,60) box of the original.
	for _, p := range []image.Point{{0, 0}, {10, 3}, {55, 55}} {
		assert.Equal(t, float32(p.X+4), tensor.At(p.Y, p.X, 0))
		assert.Equal(t, float32(p.Y+4), tensor.At(p.Y, p.X, 1))
		assert.Equal(t, float32(p.X+p.Y+8), tensor.At(p.Y, p.X, 2))
	}
}

func TestTransformAnyAspectRatio(t *testing.T) {
	for _, size := range []image.Point{{56, 56}, {128, 64}, {64, 200}, {500, 375}, {20, 30}, {1, 1}} {
		img := imaging.New(size.X, size.Y, color.NRGBA{R: 10, G: 20, B: 30, A: 0xFF})
		tensor, err := Transform(img)
		require.NoError(t, err, "size=%s", size)
		require.Len(t, tensor.Data, CropSize*CropSize*Channels, "size=%s", size)
		// Constant images stay constant, in the raw 0-255 range.
		assert.Equal(t, float32(10), tensor.At(0, 0, 0))
		assert.Equal(t, float32(20), tensor.At(CropSize/2, CropSize/2, 1))
		assert.Equal(t, float32(30), tensor.At(CropSize-1, CropSize-1, 2))
	}

	_, err := Transform(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	require.Error(t, err)
}

func TestToRGB(t *testing.T) {
	// Alpha is dropped, not composited.
	transparent := imaging.New(4, 4, color.NRGBA{R: 100, G: 150, B: 200, A: 0})
	rgb := ToRGB(transparent)
	assert.Equal(t, color.NRGBA{R: 100, G: 150, B: 200, A: 0xFF}, rgb.NRGBAAt(1, 1))

	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	for ii := range gray.Pix {
		gray.Pix[ii] = 90
	}
	rgb = ToRGB(gray)
	assert.Equal(t, color.NRGBA{R: 90, G: 90, B: 90, A: 0xFF}, rgb.NRGBAAt(3, 2))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "transparent.png")
	must.M(imaging.Save(imaging.New(80, 64, color.NRGBA{R: 100, G: 150, B: 200, A: 0}), pngPath))
	result := Load(pngPath)
	require.True(t, result.Ok(), "error: %+v", result.Err)
	assert.Equal(t, NotSkipped, result.Skip)
	assert.Equal(t, float32(100), result.Tensor.At(0, 0, 0))
	assert.Equal(t, float32(150), result.Tensor.At(0, 0, 1))
	assert.Equal(t, float32(200), result.Tensor.At(0, 0, 2))

	jpgPath := filepath.Join(dir, "gradient.JPEG")
	must.M(imaging.Save(gradient(100, 70), jpgPath, imaging.JPEGQuality(95)))
	result = Load(jpgPath)
	require.True(t, result.Ok(), "error: %+v", result.Err)
	assert.Len(t, result.Tensor.Data, CropSize*CropSize*Channels)

	grayPath := filepath.Join(dir, "gray.png")
	must.M(imaging.Save(image.NewGray(image.Rect(0, 0, 70, 70)), grayPath))
	result = Load(grayPath)
	require.True(t, result.Ok(), "error: %+v", result.Err)
	assert.Equal(t, Channels, result.Tensor.Channels)
}

func TestLoadSkips(t *testing.T) {
	dir := t.TempDir()

	result := Load(filepath.Join(dir, "missing.png"))
	assert.False(t, result.Ok())
	assert.Equal(t, SkipNotFound, result.Skip)
	assert.Nil(t, result.Tensor)
	require.Error(t, result.Err)

	corrupt := filepath.Join(dir, "corrupt.jpg")
	must.M(os.WriteFile(corrupt, []byte("this is not an image"), 0644))
	result = Load(corrupt)
	assert.Equal(t, SkipDecode, result.Skip)
	assert.Nil(t, result.Tensor)
	require.Error(t, result.Err)

	var buf bytes.Buffer
	must.M(png.Encode(&buf, gradient(64, 64)))
	truncated := filepath.Join(dir, "truncated.png")
	must.M(os.WriteFile(truncated, buf.Bytes()[:buf.Len()/2], 0644))
	result = Load(truncated)
	assert.Equal(t, SkipDecode, result.Skip)
	assert.Nil(t, result.Tensor)

	assert.Equal(t, "Decode", SkipDecode.String())
	assert.Equal(t, "Unknown", SkipReason(42).String())
}
