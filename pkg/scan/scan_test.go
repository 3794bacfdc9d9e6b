// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package scan

import (
	"image/color"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/tinyimagenet/internal/workerspool"
	"github.com/gomlx/tinyimagenet/pkg/transform"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.Png", "d.tar.jpg"} {
		assert.True(t, IsImageFile(name), name)
	}
	for _, name := range []string{"a.gif", "jpg", "b.jpg.txt", "c.", "val_annotations.txt"} {
		assert.False(t, IsImageFile(name), name)
	}
}

// makeFolder creates a folder with 3 valid images (values 10, 20 and 30), one corrupt image,
// a text file and a sub-directory.
func makeFolder(t *testing.T) string {
	dir := t.TempDir()
	for ii, name := range []string{"img_0.png", "img_1.JPEG", "img_3.png"} {
		value := uint8(10 * (ii + 1))
		must.M(imaging.Save(imaging.New(64, 64, color.NRGBA{R: value, G: value, B: value, A: 0xFF}),
			filepath.Join(dir, name), imaging.JPEGQuality(100)))
	}
	must.M(os.WriteFile(filepath.Join(dir, "img_2.jpg"), []byte("corrupted"), 0644))
	must.M(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0644))
	must.M(os.Mkdir(filepath.Join(dir, "sub.png"), 0755))
	return dir
}

func TestFolder(t *testing.T) {
	dir := makeFolder(t)
	var processed atomic.Int32
	s := &Scanner{OnImage: func(transform.Result) { processed.Add(1) }}
	folder, err := s.Folder(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"img_0.png", "img_1.JPEG", "img_3.png"}, folder.Filenames)
	require.Len(t, folder.Images, len(folder.Filenames))
	assert.Equal(t, 1, folder.Skipped[transform.SkipDecode])
	assert.Equal(t, 1, folder.NumSkipped())
	assert.Equal(t, int32(4), processed.Load())
	assert.Equal(t, float32(10), folder.Images[0].At(0, 0, 0))
	assert.Equal(t, float32(30), folder.Images[2].At(0, 0, 0))
}

func TestFolderParallelMatchesSequential(t *testing.T) {
	dir := makeFolder(t)
	sequential, err := (&Scanner{}).Folder(dir)
	require.NoError(t, err)
	for _, parallelism := range []int{2, -1} {
		parallel, err := (&Scanner{Pool: workerspool.New(parallelism)}).Folder(dir)
		require.NoError(t, err)
		assert.Equal(t, sequential.Filenames, parallel.Filenames)
		require.Len(t, parallel.Images, len(sequential.Images))
		for ii := range sequential.Images {
			assert.Equal(t, sequential.Images[ii].Data, parallel.Images[ii].Data)
		}
		assert.Equal(t, sequential.Skipped, parallel.Skipped)
	}
}

func TestFolderMissing(t *testing.T) {
	_, err := (&Scanner{}).Folder(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFolderNotFound))

	folder, err := (&Scanner{}).Folder(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, folder.Images)
	assert.Empty(t, folder.Filenames)
}
