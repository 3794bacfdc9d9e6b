// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package pipeline converts a Tiny ImageNet split (train or val folder layout) into a single
// NumPy .npz archive with the stacked images, shaped [N, 56, 56, 3], and their labels, shaped [N].
//
// The conversion goes through the stages: ValidateArgs, LoadCategoryTable, TrainScan or ValScan,
// Stack, Persist and Done. Invalid configurations end in Aborted, with nothing written.
package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gomlx/tinyimagenet/internal/workerspool"
	"github.com/gomlx/tinyimagenet/pkg/annotations"
	"github.com/gomlx/tinyimagenet/pkg/npz"
	"github.com/gomlx/tinyimagenet/pkg/scan"
	"github.com/gomlx/tinyimagenet/pkg/transform"
	"github.com/gomlx/tinyimagenet/pkg/wnids"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// ImagesSubDir is the folder holding the images, in each category folder for training,
// or in the input folder for validation.
const ImagesSubDir = "images"

// Stage of the conversion.
type Stage int

const (
	StageInit Stage = iota
	StageValidateArgs
	StageLoadCategoryTable
	StageTrainScan
	StageValScan
	StageStack
	StagePersist
	StageDone
	StageAborted
)

var stageNames = [...]string{
	StageInit:              "Init",
	StageValidateArgs:      "ValidateArgs",
	StageLoadCategoryTable: "LoadCategoryTable",
	StageTrainScan:         "TrainScan",
	StageValScan:           "ValScan",
	StageStack:             "Stack",
	StagePersist:           "Persist",
	StageDone:              "Done",
	StageAborted:           "Aborted",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// FolderReport summarizes one scanned folder.
type FolderReport struct {
	Dir string

	// Label of all images in the folder in training mode, -1 in validation mode.
	Label int

	Retained int
	Skipped  map[transform.SkipReason]int
}

// Report summarizes a finished conversion.
type Report struct {
	Mode           Mode
	NumCategories  int
	Folders        []FolderReport
	ImagesShape    string
	LabelsShape    string
	ImagesDType    string
	NumImages      int
	OutputPath     string
	OutputBytes    int64
	SkippedReasons map[transform.SkipReason]int
}

// NumSkipped returns the total number of image files skipped.
func (r *Report) NumSkipped() int {
	total := 0
	for _, count := range r.SkippedReasons {
		total += count
	}
	return total
}

// Driver runs one conversion. Create it with New.
type Driver struct {
	cfg     Config
	mode    Mode
	stage   Stage
	console io.Writer
	table   *wnids.Table
	scanner *scan.Scanner
	pBar    *progressbar.ProgressBar
	term    *termenv.Output
	report  *Report
}

// New creates a Driver for the given configuration. Call Driver.Run to convert.
func New(cfg Config) *Driver {
	d := &Driver{
		cfg:     cfg,
		console: cfg.Console,
		report:  &Report{SkippedReasons: make(map[transform.SkipReason]int)},
	}
	if d.console == nil {
		d.console = os.Stdout
	}
	d.scanner = &scan.Scanner{}
	if cfg.Parallelism != 0 {
		d.scanner.Pool = workerspool.New(cfg.Parallelism)
	}
	return d
}

// Run converts the dataset described by cfg. It's a shortcut to New(cfg).Run().
func Run(cfg Config) (*Report, error) {
	return New(cfg).Run()
}

// Stage returns the current stage, or the one where the conversion stopped.
func (d *Driver) Stage() Stage {
	return d.stage
}

func (d *Driver) setStage(stage Stage) {
	klog.V(1).Infof("stage %s -> %s", d.stage, stage)
	d.stage = stage
}

func (d *Driver) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(d.console, format, args...)
}

// Run the conversion. It can only be called once.
func (d *Driver) Run() (*Report, error) {
	if d.stage != StageInit {
		return nil, errors.Errorf("pipeline.Driver.Run called twice (stage %s)", d.stage)
	}
	d.setStage(StageValidateArgs)
	mode, err := d.cfg.Validate()
	if err != nil {
		d.setStage(StageAborted)
		return nil, err
	}
	d.mode = mode
	d.report.Mode = mode

	d.setStage(StageLoadCategoryTable)
	d.table, err = wnids.Load(d.cfg.CategoriesPath)
	if err != nil {
		return nil, err
	}
	d.report.NumCategories = d.table.Len()
	d.printf("Number of categories = %d\n", d.table.Len())

	if d.cfg.Progress {
		d.pBar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Converting"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
		d.scanner.OnImage = func(transform.Result) { _ = d.pBar.Add(1) }
		d.term = termenv.NewOutput(os.Stderr)
		d.term.HideCursor()
	}

	var images []*transform.Tensor
	var labels []int64
	if mode == ModeTrain {
		d.setStage(StageTrainScan)
		images, labels, err = d.trainScan()
	} else {
		d.setStage(StageValScan)
		images, labels, err = d.valScan()
	}
	if d.pBar != nil {
		_ = d.pBar.Finish()
		d.term.ShowCursor()
		_, _ = fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return nil, err
	}

	d.setStage(StageStack)
	batch, err := Stack(images, labels)
	if err != nil {
		return nil, err
	}
	imagesArray, labelsArray, err := batch.Arrays(d.cfg.DType, d.cfg.PositionalNames)
	if err != nil {
		return nil, err
	}
	d.printf("X shape %s\n", imagesArray.ShapeString())
	d.printf("Y shape %s\n", labelsArray.ShapeString())
	d.report.NumImages = batch.N
	d.report.ImagesShape = imagesArray.ShapeString()
	d.report.LabelsShape = labelsArray.ShapeString()
	d.report.ImagesDType = imagesArray.DType.String()

	d.setStage(StagePersist)
	d.printf("Saving results...\n")
	if err = d.persist(imagesArray, labelsArray); err != nil {
		return nil, err
	}
	d.printf("Done.\n")
	d.setStage(StageDone)
	return d.report, nil
}

// scanFolder runs the scanner on dir and records it in the report.
func (d *Driver) scanFolder(dir string, label int) (*scan.Folder, error) {
	d.printf("Processing folder %s\n", dir)
	folder, err := d.scanner.Folder(dir)
	if err != nil {
		return nil, err
	}
	d.report.Folders = append(d.report.Folders, FolderReport{
		Dir:      dir,
		Label:    label,
		Retained: len(folder.Images),
		Skipped:  folder.Skipped,
	})
	for reason, count := range folder.Skipped {
		d.report.SkippedReasons[reason] += count
	}
	return folder, nil
}

// trainScan reads every category folder <input>/<wnid>/images, labeling its images with the index of <wnid>.
func (d *Driver) trainScan() (images []*transform.Tensor, labels []int64, err error) {
	entries, err := os.ReadDir(d.cfg.InputDir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to list input folder %q", d.cfg.InputDir)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			klog.V(1).Infof("ignoring %q in training folder: not a directory", entry.Name())
			continue
		}
		label, found := d.table.Index(entry.Name())
		if !found {
			return nil, nil, errors.Wrapf(wnids.ErrUnknownCategory, "training folder %q", entry.Name())
		}
		folder, err := d.scanFolder(filepath.Join(d.cfg.InputDir, entry.Name(), ImagesSubDir), label)
		if err != nil {
			return nil, nil, err
		}
		images = append(images, folder.Images...)
		for range folder.Images {
			labels = append(labels, int64(label))
		}
	}
	return images, labels, nil
}

// valScan reads <input>/images and resolves the labels of the retained images with the annotations file.
func (d *Driver) valScan() (images []*transform.Tensor, labels []int64, err error) {
	folder, err := d.scanFolder(filepath.Join(d.cfg.InputDir, ImagesSubDir), -1)
	if err != nil {
		return nil, nil, err
	}
	d.printf("Reading %s\n", d.cfg.AnnotationsPath)
	ann, err := annotations.Load(d.cfg.AnnotationsPath)
	if err != nil {
		return nil, nil, err
	}
	labels, err = annotations.Resolve(ann, folder.Filenames, d.table)
	if err != nil {
		return nil, nil, err
	}
	return folder.Images, labels, nil
}

// persist writes the archive. The output file is created exclusively: an existing file is never modified.
// On failure the partially written file is removed.
func (d *Driver) persist(arrays ...*npz.Array) (err error) {
	outputPath := d.cfg.OutputPath
	f, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return errors.Wrapf(ErrConfig, "output file already exists at %q", outputPath)
		}
		return errors.Wrapf(ErrIO, "failed to create %q: %v", outputPath, err)
	}
	defer func() {
		if err == nil {
			return
		}
		_ = f.Close()
		if removeErr := os.Remove(outputPath); removeErr != nil {
			klog.Warningf("failed to remove partially written %q: %v", outputPath, removeErr)
		}
	}()

	w := bufio.NewWriterSize(f, 1<<20)
	if err = npz.Write(w, npz.Options{Compress: d.cfg.Compress}, arrays...); err != nil {
		return errors.Wrapf(ErrIO, "writing %q: %v", outputPath, err)
	}
	if err = w.Flush(); err != nil {
		return errors.Wrapf(ErrIO, "writing %q: %v", outputPath, err)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(ErrIO, "closing %q: %v", outputPath, err)
	}
	d.report.OutputPath = outputPath
	if info, statErr := os.Stat(outputPath); statErr == nil {
		d.report.OutputBytes = info.Size()
	}
	return nil
}
