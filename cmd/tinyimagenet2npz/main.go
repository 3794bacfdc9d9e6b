// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// tinyimagenet2npz converts a Tiny ImageNet split into a NumPy .npz archive with two arrays:
// the images, float32 shaped [N, 56, 56, 3] with values from 0 to 255, and the labels, int64 shaped [N].
//
// Training split (one folder per category):
//
//	tinyimagenet2npz -inp tiny-imagenet-200/train -mode train -out train.npz
//
// Validation split (flat images folder plus annotations):
//
//	tinyimagenet2npz -inp tiny-imagenet-200/val -mode val -out val.npz \
//	    -annotations tiny-imagenet-200/val/val_annotations.txt
//
// The categories file (-wnids) defaults to tiny_image_net_wnids.txt next to the executable.
// The exit status is non-zero on failure, and tells the kind of failure (see pipeline.ExitCode).
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gomlx/tinyimagenet/internal/fsutil"
	"github.com/gomlx/tinyimagenet/pkg/dtypes"
	"github.com/gomlx/tinyimagenet/pkg/pipeline"
	"github.com/gomlx/tinyimagenet/pkg/wnids"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagInput  = flag.String("inp", "", "Input folder with images (required).")
	flagMode   = flag.String("mode", "", "\"train\" or \"val\", case-insensitive (required).")
	flagOutput = flag.String("out", "", "Output .npz file. It must not exist (required).")

	flagCategories = flag.String("wnids", defaultCategoriesPath(),
		"File with the category identifiers, one per line. Their order defines the label indices.")
	flagAnnotations = flag.String("annotations", "",
		"File mapping validation image file names to category identifiers. Required with -mode=val.")
	flagParallelism = flag.Int("parallelism", 0,
		"Number of images decoded in parallel: 0 decodes sequentially, -1 is unlimited. The output doesn't change.")
	flagDType           = flag.String("dtype", "float32", "DType of the stored images: float32 or float16.")
	flagPositionalNames = flag.Bool("positional_names", false,
		"Name the arrays \"arr_0\" and \"arr_1\" (as numpy.savez does for unnamed arrays), instead of \"images\" and \"labels\".")
	flagCompress = flag.Bool("compress", false, "Compress the archive, as numpy.savez_compressed.")
	flagProgress = flag.Bool("progress", false, "Display a progress bar on stderr.")
	flagSummary  = flag.Bool("summary", true, "Display a summary table at the end.")
)

// defaultCategoriesPath is the category file shipped next to the executable.
func defaultCategoriesPath() string {
	exe, err := os.Executable()
	if err != nil {
		return wnids.DefaultFileName
	}
	return filepath.Join(filepath.Dir(exe), wnids.DefaultFileName)
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	code := run()
	klog.Flush()
	os.Exit(code)
}

// configFromFlags builds the pipeline configuration. Errors wrap pipeline.ErrConfig.
func configFromFlags() (pipeline.Config, error) {
	var cfg pipeline.Config
	for _, required := range []struct{ name, value string }{
		{"inp", *flagInput}, {"mode", *flagMode}, {"out", *flagOutput},
	} {
		if required.value == "" {
			return cfg, errors.Wrapf(pipeline.ErrConfig, "missing required flag -%s", required.name)
		}
	}
	if err := fsutil.ExpandHomeAll(flagInput, flagOutput, flagCategories, flagAnnotations); err != nil {
		return cfg, errors.Wrapf(pipeline.ErrConfig, "%v", err)
	}
	dtype, err := dtypes.Parse(*flagDType)
	if err != nil {
		return cfg, errors.Wrapf(pipeline.ErrConfig, "-dtype: %v", err)
	}
	cfg = pipeline.Config{
		InputDir:        *flagInput,
		Mode:            *flagMode,
		OutputPath:      *flagOutput,
		CategoriesPath:  *flagCategories,
		AnnotationsPath: *flagAnnotations,
		Parallelism:     *flagParallelism,
		DType:           dtype,
		PositionalNames: *flagPositionalNames,
		Compress:        *flagCompress,
		Progress:        *flagProgress,
		Console:         os.Stdout,
	}
	return cfg, nil
}

// run the conversion and return the exit status.
func run() int {
	cfg, err := configFromFlags()
	if err != nil {
		fmt.Println(err)
		flag.Usage()
		return pipeline.ExitCode(err)
	}
	report, err := pipeline.Run(cfg)
	if err != nil {
		fmt.Println(err)
		klog.V(1).Infof("%+v", err)
		return pipeline.ExitCode(err)
	}
	if *flagSummary {
		fmt.Println(summary(report))
	}
	return pipeline.ExitOK
}
