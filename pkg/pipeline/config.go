// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"io"
	"os"
	"strings"

	"github.com/gomlx/tinyimagenet/pkg/annotations"
	"github.com/gomlx/tinyimagenet/pkg/dtypes"
	"github.com/gomlx/tinyimagenet/pkg/scan"
	"github.com/gomlx/tinyimagenet/pkg/wnids"
	"github.com/pkg/errors"
)

// Error kinds returned by Run. Use errors.Is to classify, or ExitCode.
var (
	// ErrConfig is returned for invalid configuration: missing input folder, unknown mode,
	// pre-existing output file, etc.
	ErrConfig = errors.New("invalid configuration")

	// ErrEmptyDataset is returned if no image was retained.
	ErrEmptyDataset = errors.New("no images found")

	// ErrMisaligned is returned if the number of images and labels differ, or images have different shapes.
	ErrMisaligned = errors.New("images and labels misaligned")

	// ErrIO is returned when writing the output archive fails.
	ErrIO = errors.New("output archive I/O error")
)

// Exit codes returned by ExitCode.
const (
	ExitOK           = 0
	ExitOther        = 1
	ExitConfig       = 2
	ExitNotFound     = 3
	ExitLabelLookup  = 4
	ExitEmptyDataset = 5
	ExitIO           = 6
)

// ExitCode returns the process exit status for the error returned by Run.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, wnids.ErrFileNotFound), errors.Is(err, annotations.ErrFileNotFound),
		errors.Is(err, scan.ErrFolderNotFound):
		return ExitNotFound
	case errors.Is(err, annotations.ErrMissingAnnotation), errors.Is(err, wnids.ErrUnknownCategory):
		return ExitLabelLookup
	case errors.Is(err, ErrEmptyDataset), errors.Is(err, ErrMisaligned):
		return ExitEmptyDataset
	case errors.Is(err, ErrIO):
		return ExitIO
	}
	return ExitOther
}

// Mode selects the layout of the input folder.
type Mode int

const (
	// ModeTrain expects one sub-folder per category: <input>/<wnid>/images/*.
	ModeTrain Mode = iota

	// ModeVal expects a flat <input>/images/* folder plus an annotations file.
	ModeVal
)

func (m Mode) String() string {
	switch m {
	case ModeTrain:
		return "train"
	case ModeVal:
		return "val"
	}
	return "unknown"
}

// ParseMode parses "train" or "val", case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "train":
		return ModeTrain, nil
	case "val":
		return ModeVal, nil
	}
	return ModeTrain, errors.Wrapf(ErrConfig, "unknown mode %q, use \"train\" or \"val\"", s)
}

// Config of a conversion.
type Config struct {
	// InputDir with the dataset split.
	InputDir string

	// Mode is "train" or "val", case-insensitive.
	Mode string

	// OutputPath of the .npz archive. It must not exist.
	OutputPath string

	// CategoriesPath is the file with the category identifiers, one per line.
	CategoriesPath string

	// AnnotationsPath is the file mapping validation image names to category identifiers.
	// Required in "val" mode, ignored otherwise.
	AnnotationsPath string

	// Parallelism for decoding images: 0 decodes sequentially, -1 is unlimited.
	// The output doesn't depend on it.
	Parallelism int

	// DType of the stored images: dtypes.Float32 (default if InvalidDType) or dtypes.Float16.
	DType dtypes.DType

	// PositionalNames stores the arrays as "arr_0" and "arr_1" (numpy.savez positional names)
	// instead of "images" and "labels".
	PositionalNames bool

	// Compress the archive members.
	Compress bool

	// Progress displays a progress bar on stderr.
	Progress bool

	// Console receives the human-readable progress lines. Defaults to os.Stdout.
	Console io.Writer
}

// Validate checks the configuration and returns the parsed Mode.
// All errors wrap ErrConfig.
func (c *Config) Validate() (Mode, error) {
	if c.InputDir == "" {
		return ModeTrain, errors.Wrapf(ErrConfig, "input folder not given")
	}
	if info, err := os.Stat(c.InputDir); err != nil || !info.IsDir() {
		return ModeTrain, errors.Wrapf(ErrConfig, "cannot find input folder at %q", c.InputDir)
	}
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return mode, err
	}
	if c.OutputPath == "" {
		return mode, errors.Wrapf(ErrConfig, "output file not given")
	}
	if _, err := os.Lstat(c.OutputPath); err == nil {
		return mode, errors.Wrapf(ErrConfig, "output file already exists at %q", c.OutputPath)
	}
	if c.CategoriesPath == "" {
		return mode, errors.Wrapf(ErrConfig, "categories file not given")
	}
	if mode == ModeVal && c.AnnotationsPath == "" {
		return mode, errors.Wrapf(ErrConfig, "mode %q requires the annotations file", mode)
	}
	switch c.DType {
	case dtypes.InvalidDType, dtypes.Float32, dtypes.Float16:
	default:
		return mode, errors.Wrapf(ErrConfig, "images can be stored as Float32 or Float16, not %s", c.DType)
	}
	return mode, nil
}
