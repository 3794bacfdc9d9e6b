// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package transform decodes an image file and converts it to a fixed size RGB tensor:
// the shorter side is resized to ResizeSize (keeping the aspect ratio), and then the center
// CropSize x CropSize square is cropped.
//
// Failures are not returned as errors: Load always returns a Result, which either holds the
// Tensor or tells why the image was skipped.
package transform

import (
	"image"
	"math"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

const (
	// ResizeSize is the length of the shorter side after resizing.
	ResizeSize = 64

	// CropSize is the height and width of the center crop.
	CropSize = 56

	// Channels of the converted tensor: R, G and B.
	Channels = 3
)

// SkipReason tells why an image was not converted.
type SkipReason int

const (
	NotSkipped SkipReason = iota
	SkipNotFound
	SkipDecode
	SkipTransform
)

func (r SkipReason) String() string {
	switch r {
	case NotSkipped:
		return "NotSkipped"
	case SkipNotFound:
		return "NotFound"
	case SkipDecode:
		return "Decode"
	case SkipTransform:
		return "Transform"
	}
	return "Unknown"
}

// Tensor holds one image as float32 values in the range 0 to 255, flat in row-major
// [Height, Width, Channels] order.
type Tensor struct {
	Height, Width, Channels int
	Data                    []float32
}

// At returns the value at row y, column x and channel c.
func (t *Tensor) At(y, x, c int) float32 {
	return t.Data[(y*t.Width+x)*t.Channels+c]
}

// Result of loading one image: either Tensor is set, or Skip tells why not, with Err holding the cause.
type Result struct {
	Path   string
	Tensor *Tensor
	Skip   SkipReason
	Err    error
}

// Ok returns whether the image was converted.
func (r Result) Ok() bool {
	return r.Skip == NotSkipped && r.Tensor != nil
}

// Load reads the image at filePath and converts it with Transform.
func Load(filePath string) Result {
	if _, err := os.Stat(filePath); err != nil {
		return Result{Path: filePath, Skip: SkipNotFound, Err: errors.Wrapf(err, "image %q", filePath)}
	}
	// Some decoders panic on malformed input, so panics are also treated as decode failures.
	var img image.Image
	err := exceptions.TryCatch[error](func() {
		var openErr error
		img, openErr = imaging.Open(filePath)
		if openErr != nil {
			panic(openErr)
		}
	})
	if err != nil {
		return Result{Path: filePath, Skip: SkipDecode, Err: errors.Wrapf(err, "failed to decode %q", filePath)}
	}
	t, err := Transform(img)
	if err != nil {
		return Result{Path: filePath, Skip: SkipTransform, Err: errors.WithMessagef(err, "image %q", filePath)}
	}
	return Result{Path: filePath, Tensor: t}
}

// ResizedSize returns the size an image of the given dimensions is resized to, so that its shorter
// side becomes ResizeSize. Each side is rounded half-up.
func ResizedSize(width, height int) (newWidth, newHeight int) {
	factor := float64(ResizeSize) / float64(min(width, height))
	newWidth = int(math.Floor(factor*float64(width) + 0.5))
	newHeight = int(math.Floor(factor*float64(height) + 0.5))
	return
}

// CropBox returns the center crop rectangle for a resized image of the given dimensions.
func CropBox(width, height int) image.Rectangle {
	padX := (width - CropSize) / 2
	padY := (height - CropSize) / 2
	return image.Rect(padX, padY, padX+CropSize, padY+CropSize)
}

// Transform converts the image to RGB, resizes it and crops its center.
func Transform(img image.Image) (*Tensor, error) {
	size := img.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Errorf("invalid image size %s", size)
	}
	rgb := ToRGB(img)
	newWidth, newHeight := ResizedSize(size.X, size.Y)
	if newWidth < CropSize || newHeight < CropSize {
		return nil, errors.Errorf("image size %s resized to %dx%d, smaller than crop %dx%d",
			size, newWidth, newHeight, CropSize, CropSize)
	}
	resized := imaging.Resize(rgb, newWidth, newHeight, imaging.Lanczos)
	cropped := imaging.Crop(resized, CropBox(newWidth, newHeight))
	if got := cropped.Bounds().Size(); got.X != CropSize || got.Y != CropSize {
		return nil, errors.Errorf("cropped image has size %s, wanted %dx%d", got, CropSize, CropSize)
	}
	return toTensor(cropped), nil
}

// ToRGB converts any image to non-premultiplied RGBA with the alpha channel discarded (set to opaque),
// the same as dropping the alpha channel of an RGBA image. Grayscale and paletted images are expanded.
func ToRGB(img image.Image) *image.NRGBA {
	rgb := imaging.Clone(img)
	for ii := 3; ii < len(rgb.Pix); ii += 4 {
		rgb.Pix[ii] = 0xFF
	}
	return rgb
}

func toTensor(img *image.NRGBA) *Tensor {
	size := img.Bounds().Size()
	t := &Tensor{
		Height:   size.Y,
		Width:    size.X,
		Channels: Channels,
		Data:     make([]float32, size.X*size.Y*Channels),
	}
	pos := 0
	for y := 0; y < size.Y; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < size.X; x++ {
			for c := 0; c < Channels; c++ {
				t.Data[pos] = float32(row[x*4+c])
				pos++
			}
		}
	}
	return t
}
