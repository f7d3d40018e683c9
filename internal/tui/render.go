package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"artifactcore/internal/chart"
	"artifactcore/pkg/domain"
)

const (
	maxCellWidth = 28
	barGlyph     = "█"
	trackGlyph   = "░"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// renderTable draws t as a bordered grid. Long cells are cut at maxCellWidth.
func renderTable(t domain.Table) string {
	if len(t.Columns) == 0 {
		return labelStyle.Render("(no columns)")
	}
	rows := make([][]string, 0, t.Len())
	for _, rec := range t.Records() {
		cells := make([]string, len(rec))
		for i, v := range rec {
			cells[i] = truncate(domain.FormatValue(v), maxCellWidth)
		}
		rows = append(rows, cells)
	}
	grid := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(t.Columns...).
		Rows(rows...)
	out := grid.Render()
	if t.Empty() {
		out += "\n" + labelStyle.Render("(no rows)")
	}
	return out
}

// renderChart draws one horizontal bar per point scaled to width columns.
func renderChart(bar *chart.Bar, width int) string {
	if bar == nil || len(bar.Points) == 0 {
		return ""
	}
	labels := make([]string, len(bar.Points))
	values := make([]string, len(bar.Points))
	labelWidth, valueWidth := 0, 0
	for i, p := range bar.Points {
		labels[i] = truncate(p.Label, maxCellWidth)
		values[i] = strconv.FormatFloat(p.Value, 'g', -1, 64)
		labelWidth = max(labelWidth, lipgloss.Width(labels[i]))
		valueWidth = max(valueWidth, len(values[i]))
	}
	span := width - labelWidth - valueWidth - 4
	if span < 10 {
		span = 10
	}
	top := bar.Max()
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s by %s", bar.YAxis, bar.XAxis)))
	for i, p := range bar.Points {
		n := 0
		if top > 0 && p.Value > 0 {
			n = int(p.Value / top * float64(span))
			if n == 0 {
				n = 1
			}
		}
		pad := strings.Repeat(" ", labelWidth-lipgloss.Width(labels[i]))
		fmt.Fprintf(&b, "\n%s%s │ %s %s", labels[i], pad, barStyle.Render(strings.Repeat(barGlyph, n)), values[i])
	}
	return b.String()
}

// renderProgress draws a fixed-width bar for fraction in [0, 1].
func renderProgress(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	if width < 10 {
		width = 10
	}
	filled := int(fraction * float64(width))
	return barStyle.Render(strings.Repeat(barGlyph, filled)) +
		labelStyle.Render(strings.Repeat(trackGlyph, width-filled)) +
		fmt.Sprintf(" %3.0f%%", fraction*100)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
