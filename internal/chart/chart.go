// Package chart derives a bar chart from a query result.
package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"artifactcore/pkg/domain"
)

// MaxBars is the number of leading rows charted.
const MaxBars = 10

// Point is one bar.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Bar is a single-series bar chart: x is the first result column, y the second.
type Bar struct {
	XAxis  string  `json:"x_axis"`
	YAxis  string  `json:"y_axis"`
	Points []Point `json:"points"`
}

// BuildBar charts the first MaxBars rows of t. It returns nil when t has
// fewer than two columns, no rows, or no numeric value in the second column.
// Rows whose y value is not numeric are skipped.
func BuildBar(t domain.Table) *Bar {
	if len(t.Columns) < 2 || t.Empty() {
		return nil
	}
	head := t.Head(MaxBars)
	bar := &Bar{XAxis: t.Columns[0], YAxis: t.Columns[1], Points: make([]Point, 0, head.Len())}
	for i := range head.Rows {
		v, ok := Numeric(head.Value(i, bar.YAxis))
		if !ok {
			continue
		}
		bar.Points = append(bar.Points, Point{Label: Label(head.Value(i, bar.XAxis)), Value: v})
	}
	if len(bar.Points) == 0 {
		return nil
	}
	return bar
}

// Max returns the largest point value, or 0 for an empty chart.
func (b *Bar) Max() float64 {
	if b == nil || len(b.Points) == 0 {
		return 0
	}
	m := b.Points[0].Value
	for _, p := range b.Points[1:] {
		m = math.Max(m, p.Value)
	}
	return m
}

// Numeric converts driver values to float64.
func Numeric(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case float64:
		f = x
	case float32:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	case []byte:
		return Numeric(string(x))
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Label renders an x value; NULL becomes "(null)".
func Label(v any) string {
	switch x := v.(type) {
	case nil:
		return "(null)"
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
