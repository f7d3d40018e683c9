package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Table is a fully materialized query result. Columns keeps the select-list
// order; each Row offers dictionary-style access to the same values.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Value returns the value at row i for the named column, or nil when out of range.
func (t Table) Value(i int, column string) any {
	if i < 0 || i >= len(t.Rows) {
		return nil
	}
	return t.Rows[i][column]
}

// Head returns a table holding at most the first n rows.
func (t Table) Head(n int) Table {
	if n < 0 || n >= len(t.Rows) {
		return t
	}
	return Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// Records returns the rows as positional slices in Columns order.
func (t Table) Records() [][]any {
	out := make([][]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		vals := make([]any, len(t.Columns))
		for i, col := range t.Columns {
			vals[i] = row[col]
		}
		out = append(out, vals)
	}
	return out
}

// FormatValue renders a cell for text output. NULL renders as the empty string.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}
