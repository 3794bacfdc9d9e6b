// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package wnids loads the table of category identifiers (WordNet IDs, "wnids") and assigns
// them dense label indices.
package wnids

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultFileName of the category file shipped along with the converter.
const DefaultFileName = "tiny_image_net_wnids.txt"

// MinLength of a normalized line to be considered a category identifier. Shorter lines are skipped.
const MinLength = 9

var (
	// ErrFileNotFound is returned when the category file doesn't exist.
	ErrFileNotFound = errors.New("category file not found")

	// ErrUnknownCategory is returned when a category identifier is not in the Table.
	ErrUnknownCategory = errors.New("unknown category")
)

// Table maps normalized category identifiers to label indices 0..Len()-1, in file order.
// It is immutable once loaded.
type Table struct {
	indices map[string]int
	ordered []string
}

// Normalize a category identifier: trims spaces and lower-cases.
func Normalize(wnid string) string {
	return strings.ToLower(strings.TrimSpace(wnid))
}

// Load reads the category file at filePath, one identifier per line.
//
// Repeated identifiers keep the index of their first occurrence, so indices never have gaps.
func Load(filePath string) (*Table, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrFileNotFound, "%q", filePath)
		}
		return nil, errors.Wrapf(err, "failed to open category file %q", filePath)
	}
	defer func() { _ = f.Close() }()

	table := &Table{indices: make(map[string]int)}
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		wnid := Normalize(scanner.Text())
		if len(wnid) < MinLength {
			continue
		}
		if idx, found := table.indices[wnid]; found {
			klog.Warningf("category %q repeated in %s:%d, keeping index %d", wnid, filePath, lineNum, idx)
			continue
		}
		table.indices[wnid] = len(table.ordered)
		table.ordered = append(table.ordered, wnid)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read category file %q", filePath)
	}
	return table, nil
}

// FromList builds a Table from identifiers, with the same normalization and filtering as Load.
func FromList(wnids ...string) *Table {
	table := &Table{indices: make(map[string]int)}
	for _, wnid := range wnids {
		wnid = Normalize(wnid)
		if len(wnid) < MinLength {
			continue
		}
		if _, found := table.indices[wnid]; found {
			continue
		}
		table.indices[wnid] = len(table.ordered)
		table.ordered = append(table.ordered, wnid)
	}
	return table
}

// Len returns the number of categories.
func (t *Table) Len() int { return len(t.ordered) }

// Index returns the label index of the category identifier. The identifier is normalized first.
func (t *Table) Index(wnid string) (int, bool) {
	idx, found := t.indices[Normalize(wnid)]
	return idx, found
}

// WNIDs returns the category identifiers ordered by their index.
func (t *Table) WNIDs() []string {
	return append([]string(nil), t.ordered...)
}
