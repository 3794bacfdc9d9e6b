// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/tinyimagenet/pkg/pipeline"
	"github.com/gomlx/tinyimagenet/pkg/transform"
)

var (
	keyStyle   = lipgloss.NewStyle().Bold(true).PaddingLeft(1).PaddingRight(1).Align(lipgloss.Right)
	valueStyle = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1).Align(lipgloss.Left)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

// summary renders the conversion report as a table.
func summary(report *pipeline.Report) string {
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return keyStyle
			}
			return valueStyle
		})
	table.Row("mode", report.Mode.String())
	table.Row("# categories", humanize.Comma(int64(report.NumCategories)))
	table.Row("# folders", humanize.Comma(int64(len(report.Folders))))
	table.Row("# images", humanize.Comma(int64(report.NumImages)))
	table.Row("# skipped", skippedString(report))
	table.Row("images", fmt.Sprintf("%s %s", report.ImagesDType, report.ImagesShape))
	table.Row("labels", fmt.Sprintf("Int64 %s", report.LabelsShape))
	table.Row("output", report.OutputPath)
	table.Row("size", humanize.Bytes(uint64(report.OutputBytes)))
	return titleStyle.Render("Summary") + "\n" + table.Render()
}

// skippedString lists the skipped counts per reason, e.g. "3 (Decode: 2, NotFound: 1)".
func skippedString(report *pipeline.Report) string {
	total := report.NumSkipped()
	if total == 0 {
		return "0"
	}
	reasons := make([]transform.SkipReason, 0, len(report.SkippedReasons))
	for reason := range report.SkippedReasons {
		reasons = append(reasons, reason)
	}
	slices.Sort(reasons)
	parts := make([]string, 0, len(reasons))
	for _, reason := range reasons {
		parts = append(parts, fmt.Sprintf("%s: %s", reason, humanize.Comma(int64(report.SkippedReasons[reason]))))
	}
	return fmt.Sprintf("%s (%s)", humanize.Comma(int64(total)), strings.Join(parts, ", "))
}
