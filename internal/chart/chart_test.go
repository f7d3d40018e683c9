package chart

import (
	"encoding/json"
	"math"
	"testing"

	"artifactcore/pkg/domain"
)

func table(cols []string, rows ...domain.Row) domain.Table {
	return domain.Table{Columns: cols, Rows: rows}
}

func TestBuildBarUsesFirstTwoColumns(t *testing.T) {
	tb := table([]string{"classification", "total", "extra"},
		domain.Row{"classification": "Coins", "total": int64(12), "extra": "x"},
		domain.Row{"classification": "Paintings", "total": 3.5},
		domain.Row{"classification": nil, "total": "4"},
	)
	bar := BuildBar(tb)
	if bar == nil {
		t.Fatalf("expected chart")
	}
	if bar.XAxis != "classification" || bar.YAxis != "total" {
		t.Fatalf("unexpected axes %s/%s", bar.XAxis, bar.YAxis)
	}
	want := []Point{{"Coins", 12}, {"Paintings", 3.5}, {"(null)", 4}}
	if len(bar.Points) != len(want) {
		t.Fatalf("expected %d points, got %+v", len(want), bar.Points)
	}
	for i := range want {
		if bar.Points[i] != want[i] {
			t.Fatalf("point %d: want %+v got %+v", i, want[i], bar.Points[i])
		}
	}
	if bar.Max() != 12 {
		t.Fatalf("expected max 12, got %v", bar.Max())
	}
}

func TestBuildBarChartsAtMostTenRows(t *testing.T) {
	var rows []domain.Row
	for i := 0; i < 25; i++ {
		rows = append(rows, domain.Row{"k": i, "v": int64(i)})
	}
	bar := BuildBar(table([]string{"k", "v"}, rows...))
	if bar == nil || len(bar.Points) != MaxBars {
		t.Fatalf("expected %d bars, got %+v", MaxBars, bar)
	}
	if bar.Points[9].Label != "9" {
		t.Fatalf("expected leading rows, got %+v", bar.Points[9])
	}
}

func TestBuildBarNotChartable(t *testing.T) {
	cases := map[string]domain.Table{
		"one column":   table([]string{"n"}, domain.Row{"n": int64(1)}),
		"no rows":      table([]string{"a", "b"}),
		"non numeric":  table([]string{"a", "b"}, domain.Row{"a": "x", "b": "y"}),
		"null y":       table([]string{"a", "b"}, domain.Row{"a": "x", "b": nil}),
		"empty result": {},
	}
	for name, tb := range cases {
		if bar := BuildBar(tb); bar != nil {
			t.Fatalf("%s: expected nil chart, got %+v", name, bar)
		}
	}
	var nilBar *Bar
	if nilBar.Max() != 0 {
		t.Fatalf("nil bar max should be 0")
	}
}

func TestNumeric(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{int64(5), 5, true},
		{7, 7, true},
		{int32(2), 2, true},
		{float32(1.5), 1.5, true},
		{json.Number("2.25"), 2.25, true},
		{json.Number("x"), 0, false},
		{" 10 ", 10, true},
		{[]byte("3"), 3, true},
		{"n.d.", 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := Numeric(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("Numeric(%#v) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestLabel(t *testing.T) {
	if Label([]byte("b")) != "b" || Label(int64(3)) != "3" || Label(nil) != "(null)" {
		t.Fatalf("unexpected labels")
	}
}
