// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/tinyimagenet/pkg/pipeline"
	"github.com/gomlx/tinyimagenet/pkg/transform"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setFlags resets the conversion flags to their defaults, and then sets the given ones.
func setFlags(t *testing.T, values map[string]string) {
	for _, name := range []string{"inp", "mode", "out", "wnids", "annotations", "parallelism", "dtype",
		"positional_names", "compress", "progress", "summary"} {
		f := flag.Lookup(name)
		require.NotNil(t, f, name)
		must.M(f.Value.Set(f.DefValue))
	}
	for name, value := range values {
		must.M(flag.Set(name, value))
	}
}

func makeDataset(t *testing.T) (root string) {
	root = t.TempDir()
	must.M(os.WriteFile(filepath.Join(root, "wnids.txt"), []byte("n01443537\nn01629819\n"), 0644))
	for ii, wnid := range []string{"n01443537", "n01629819"} {
		dir := filepath.Join(root, "train", wnid, "images")
		must.M(os.MkdirAll(dir, 0755))
		img := imaging.New(70, 64, color.NRGBA{R: uint8(ii * 100), A: 0xFF})
		must.M(imaging.Save(img, filepath.Join(dir, wnid+"_0.JPEG")))
	}
	return root
}

func TestRun(t *testing.T) {
	root := makeDataset(t)
	output := filepath.Join(root, "train.npz")
	setFlags(t, map[string]string{
		"inp":         filepath.Join(root, "train"),
		"mode":        "train",
		"out":         output,
		"wnids":       filepath.Join(root, "wnids.txt"),
		"parallelism": "2",
	})
	assert.Equal(t, pipeline.ExitOK, run())
	assert.FileExists(t, output)

	// Running again must not overwrite the output.
	before := must.M1(os.ReadFile(output))
	assert.Equal(t, pipeline.ExitConfig, run())
	assert.Equal(t, before, must.M1(os.ReadFile(output)))
}

func TestRunConfigErrors(t *testing.T) {
	root := makeDataset(t)
	setFlags(t, map[string]string{"inp": filepath.Join(root, "train"), "mode": "train"})
	assert.Equal(t, pipeline.ExitConfig, run(), "missing -out")

	setFlags(t, map[string]string{
		"inp":   filepath.Join(root, "train"),
		"mode":  "train",
		"out":   filepath.Join(root, "out.npz"),
		"dtype": "int8",
	})
	assert.Equal(t, pipeline.ExitConfig, run(), "invalid -dtype for images")

	setFlags(t, map[string]string{
		"inp":   filepath.Join(root, "train"),
		"mode":  "train",
		"out":   filepath.Join(root, "out.npz"),
		"dtype": "float128",
	})
	assert.Equal(t, pipeline.ExitConfig, run(), "unknown -dtype")

	setFlags(t, map[string]string{
		"inp":   filepath.Join(root, "train"),
		"mode":  "train",
		"out":   filepath.Join(root, "out.npz"),
		"wnids": filepath.Join(root, "missing.txt"),
	})
	assert.Equal(t, pipeline.ExitNotFound, run())
	assert.NoFileExists(t, filepath.Join(root, "out.npz"))
}

func TestSummary(t *testing.T) {
	report := &pipeline.Report{
		Mode:           pipeline.ModeVal,
		NumCategories:  200,
		NumImages:      9998,
		ImagesShape:    "(9998, 56, 56, 3)",
		LabelsShape:    "(9998,)",
		ImagesDType:    "Float32",
		OutputPath:     "val.npz",
		OutputBytes:    376_000_000,
		SkippedReasons: map[transform.SkipReason]int{transform.SkipDecode: 2},
	}
	got := summary(report)
	assert.Contains(t, got, "9,998")
	assert.Contains(t, got, "2 (Decode: 2)")
	assert.Contains(t, got, "376 MB")
	assert.Equal(t, "0", skippedString(&pipeline.Report{}))
}
