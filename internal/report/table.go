// Package report renders stopwatch output as plain text.
package report

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/laplog"
	"github.com/verte-zerg/lapwatch/internal/model"
)

// FormatLaps renders laps as aligned Lap/Time/Split rows with a header.
func FormatLaps(records []model.LapRecord) []string {
	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		rows = append(rows, []string{
			fmt.Sprintf("(%d)", rec.Index),
			clock.Decompose(rec.Elapsed).String(),
			"+" + clock.Decompose(laplog.Split(records, i)).String(),
		})
	}
	return formatTable([]string{"Lap", "Time", "Split"}, rows, map[int]bool{0: true, 1: true, 2: true})
}

// FormatSources renders configured sources with their validation status.
// status is indexed like cfgs.
func FormatSources(cfgs []model.SourceConfig, status []string) []string {
	rows := make([][]string, 0, len(cfgs))
	for i, c := range cfgs {
		st := ""
		if i < len(status) {
			st = status[i]
		}
		rows = append(rows, []string{c.Name, string(c.Kind), string(c.Binding), c.Trigger, sourceDetail(c), st})
	}
	return formatTable([]string{"Name", "Kind", "Binding", "Trigger", "Detail", "Status"}, rows, nil)
}

func sourceDetail(c model.SourceConfig) string {
	var parts []string
	switch c.Kind {
	case model.KindGPIO:
		if c.Binding == model.BindingRPIO {
			parts = append(parts, fmt.Sprintf("pin %d", c.Pin), "pull "+c.Pull)
		}
	case model.KindTouch:
		parts = append(parts, fmt.Sprintf("low %d", c.Low), fmt.Sprintf("high %d", c.High))
	case model.KindHall:
		parts = append(parts, fmt.Sprintf("band %d-%d", c.Min, c.Max))
	}
	if c.Binding == model.BindingSysfs && c.Path != "" {
		parts = append(parts, c.Path)
	}
	return strings.Join(parts, " ")
}

func formatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i := 0; i < colCount && i < len(row); i++ {
			if w := runewidth.StringWidth(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlignCols))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool) string {
	var b strings.Builder
	for i := 0; i < len(widths); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(padCell(cell, widths[i], rightAlignCols[i]))
	}
	return strings.TrimRight(b.String(), " ")
}

func padCell(value string, width int, rightAlign bool) string {
	if rightAlign {
		return runewidth.FillLeft(value, width)
	}
	return runewidth.FillRight(value, width)
}
