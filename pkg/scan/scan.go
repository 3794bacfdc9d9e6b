// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package scan converts all image files of a folder into tensors.
package scan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/tinyimagenet/internal/workerspool"
	"github.com/gomlx/tinyimagenet/pkg/transform"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ImageExtensions accepted by IsImageFile, lower-case.
var ImageExtensions = []string{"jpg", "jpeg", "png"}

// ErrFolderNotFound is returned when the folder to scan doesn't exist.
var ErrFolderNotFound = errors.New("folder not found")

// IsImageFile returns whether the extension (after the last ".", case-insensitive) is one of ImageExtensions.
func IsImageFile(name string) bool {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return false
	}
	ext := strings.ToLower(name[dot+1:])
	for _, accepted := range ImageExtensions {
		if ext == accepted {
			return true
		}
	}
	return false
}

// Folder holds the images retained from one folder.
//
// Images[ii] was read from Filenames[ii]. Skipped files appear in neither.
type Folder struct {
	Dir       string
	Images    []*transform.Tensor
	Filenames []string
	Skipped   map[transform.SkipReason]int
}

// NumSkipped returns the total number of skipped image files.
func (f *Folder) NumSkipped() int {
	total := 0
	for _, count := range f.Skipped {
		total += count
	}
	return total
}

// Scanner converts the images of folders. The zero value is valid and works sequentially.
type Scanner struct {
	// Pool used to decode images in parallel. If nil, images are decoded sequentially.
	// The output is the same in either case.
	Pool *workerspool.Pool

	// OnImage, if set, is called after each image file is processed, successfully or not.
	// It may be called concurrently if Pool is set.
	OnImage func(result transform.Result)
}

// Folder lists dir (not recursively), and converts every image file in it with transform.Load.
//
// Files are processed in name order (as returned by os.ReadDir).
func (s *Scanner) Folder(dir string) (*Folder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrFolderNotFound, "%q", dir)
		}
		return nil, errors.Wrapf(err, "failed to list folder %q", dir)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}

	results := make([]transform.Result, len(names))
	s.Pool.Run(len(names), func(ii int) {
		results[ii] = transform.Load(filepath.Join(dir, names[ii]))
		if s.OnImage != nil {
			s.OnImage(results[ii])
		}
	})

	folder := &Folder{
		Dir:       dir,
		Images:    make([]*transform.Tensor, 0, len(names)),
		Filenames: make([]string, 0, len(names)),
		Skipped:   make(map[transform.SkipReason]int),
	}
	for ii, result := range results {
		if !result.Ok() {
			folder.Skipped[result.Skip]++
			klog.V(1).Infof("skipped %q (%s): %v", result.Path, result.Skip, result.Err)
			continue
		}
		folder.Images = append(folder.Images, result.Tensor)
		folder.Filenames = append(folder.Filenames, names[ii])
	}
	return folder, nil
}
