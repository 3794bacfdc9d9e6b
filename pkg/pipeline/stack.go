// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"github.com/gomlx/tinyimagenet/pkg/dtypes"
	"github.com/gomlx/tinyimagenet/pkg/npz"
	"github.com/gomlx/tinyimagenet/pkg/transform"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Names of the arrays in the archive.
const (
	ImagesName = "images"
	LabelsName = "labels"

	// Positional names, as given by numpy.savez to unnamed arrays.
	PositionalImagesName = "arr_0"
	PositionalLabelsName = "arr_1"
)

// Batch holds all images stacked in one flat [N, Height, Width, Channels] slice, and their labels.
type Batch struct {
	N                       int
	Height, Width, Channels int
	Images                  []float32
	Labels                  []int64
}

// ImagesDimensions returns [N, Height, Width, Channels].
func (b *Batch) ImagesDimensions() []int {
	return []int{b.N, b.Height, b.Width, b.Channels}
}

// Stack concatenates the images into one Batch, along with their labels.
//
// images[ii] must correspond to labels[ii]: it fails with ErrMisaligned if their lengths
// or the image shapes differ, and with ErrEmptyDataset if there are no images.
func Stack(images []*transform.Tensor, labels []int64) (*Batch, error) {
	if len(images) != len(labels) {
		return nil, errors.Wrapf(ErrMisaligned, "%d images but %d labels", len(images), len(labels))
	}
	if len(images) == 0 {
		return nil, ErrEmptyDataset
	}
	first := images[0]
	b := &Batch{
		N:        len(images),
		Height:   first.Height,
		Width:    first.Width,
		Channels: first.Channels,
		Labels:   append([]int64(nil), labels...),
	}
	imageSize := b.Height * b.Width * b.Channels
	b.Images = make([]float32, b.N*imageSize)
	for ii, img := range images {
		if img.Height != b.Height || img.Width != b.Width || img.Channels != b.Channels || len(img.Data) != imageSize {
			return nil, errors.Wrapf(ErrMisaligned, "image #%d shaped (%d, %d, %d), but image #0 is (%d, %d, %d)",
				ii, img.Height, img.Width, img.Channels, b.Height, b.Width, b.Channels)
		}
		copy(b.Images[ii*imageSize:], img.Data)
	}
	return b, nil
}

// Arrays returns the images and labels arrays to be saved, in that order.
//
// Images are stored with the given dtype, either Float32 (InvalidDType defaults to it) or Float16.
func (b *Batch) Arrays(dtype dtypes.DType, positionalNames bool) (images, labels *npz.Array, err error) {
	imagesName, labelsName := ImagesName, LabelsName
	if positionalNames {
		imagesName, labelsName = PositionalImagesName, PositionalLabelsName
	}
	switch dtype {
	case dtypes.InvalidDType, dtypes.Float32:
		images, err = npz.NewArray(imagesName, b.Images, b.ImagesDimensions()...)
	case dtypes.Float16:
		half := make([]float16.Float16, len(b.Images))
		for ii, v := range b.Images {
			half[ii] = float16.Fromfloat32(v)
		}
		images, err = npz.NewArray(imagesName, half, b.ImagesDimensions()...)
	default:
		err = errors.Errorf("images can't be stored as %s", dtype)
	}
	if err != nil {
		return nil, nil, err
	}
	labels, err = npz.NewArray(labelsName, b.Labels, b.N)
	if err != nil {
		return nil, nil, err
	}
	return images, labels, nil
}
