package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"artifactcore/internal/catalog"
	"artifactcore/internal/chart"
	"artifactcore/pkg/domain"
)

const (
	chartWidth   = 40
	maxCellWidth = 40
)

func writeTable(w io.Writer, t domain.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	for _, rec := range t.Records() {
		cells := make([]string, len(rec))
		for i, v := range rec {
			cells[i] = clip(domain.FormatValue(v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", t.Len())
	return err
}

func writeCatalog(w io.Writer, queries []catalog.Query, showSQL bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, q := range queries {
		fmt.Fprintf(tw, "%s\t%s\n", q.ID, q.Title)
		if showSQL {
			fmt.Fprintf(tw, "\t%s\n", strings.Join(strings.Fields(q.SQL), " "))
		}
	}
	return tw.Flush()
}

// writeChart draws the bar chart of t, or a note when t cannot be charted.
func writeChart(w io.Writer, t domain.Table, width int) error {
	bar := chart.BuildBar(t)
	if bar == nil {
		_, err := fmt.Fprintln(w, "\n(no chart: need two columns and a numeric second column)")
		return err
	}
	fmt.Fprintf(w, "\n%s by %s\n", bar.YAxis, bar.XAxis)
	top := bar.Max()
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, p := range bar.Points {
		n := 0
		if top > 0 && p.Value > 0 {
			n = max(int(p.Value/top*float64(width)), 1)
		}
		fmt.Fprintf(tw, "%s\t%s %s\n", clip(p.Label), strings.Repeat("#", n), strconv.FormatFloat(p.Value, 'g', -1, 64))
	}
	return tw.Flush()
}

func clip(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > maxCellWidth {
		return string(r[:maxCellWidth-3]) + "..."
	}
	return s
}
