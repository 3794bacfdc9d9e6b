// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package annotations resolves the labels of validation images from an annotations file
// mapping file names to category identifiers.
package annotations

import (
	"bufio"
	"os"
	"strings"

	"github.com/gomlx/tinyimagenet/pkg/wnids"
	"github.com/pkg/errors"
)

var (
	// ErrFileNotFound is returned when the annotations file doesn't exist.
	ErrFileNotFound = errors.New("annotations file not found")

	// ErrMissingAnnotation is returned when a retained image has no entry in the annotations file.
	ErrMissingAnnotation = errors.New("missing annotation")

	// ErrUnknownCategory is returned when a category identifier is not in the category table.
	ErrUnknownCategory = wnids.ErrUnknownCategory
)

// Annotations maps image file names to category identifiers.
type Annotations map[string]string

// Load reads an annotations file: one entry per line, whitespace separated, with the file name in
// the first field and the category identifier in the second. Further fields (bounding boxes) are ignored.
func Load(filePath string) (Annotations, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrFileNotFound, "%q", filePath)
		}
		return nil, errors.Wrapf(err, "failed to open annotations file %q", filePath)
	}
	defer func() { _ = f.Close() }()

	ann := make(Annotations)
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, errors.Errorf("%s:%d: expected file name and category, got %q", filePath, lineNum, scanner.Text())
		}
		ann[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read annotations file %q", filePath)
	}
	return ann, nil
}

// Resolve returns the label index of each file name, in the same order.
//
// It fails with ErrMissingAnnotation or ErrUnknownCategory instead of skipping: either means the
// annotations don't match the images or the category table.
func Resolve(ann Annotations, filenames []string, table *wnids.Table) ([]int64, error) {
	labels := make([]int64, len(filenames))
	for ii, filename := range filenames {
		wnid, found := ann[filename]
		if !found {
			return nil, errors.Wrapf(ErrMissingAnnotation, "image %q", filename)
		}
		idx, found := table.Index(wnid)
		if !found {
			return nil, errors.Wrapf(ErrUnknownCategory, "category %q of image %q", wnid, filename)
		}
		labels[ii] = int64(idx)
	}
	return labels, nil
}
