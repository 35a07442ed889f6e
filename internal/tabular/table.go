package tabular

import (
	"path"
	"strings"
)

type Format string

const (
	CSV     Format = "csv"
	JSON    Format = "json"
	Parquet Format = "parquet"
)

// ParseFormat is case-insensitive.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, JSON, Parquet:
		return f, nil
	default:
		return "", NewErrUnsupported(s)
	}
}

// FormatOf infers the format from the extension of key.
func FormatOf(key string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(path.Ext(key), "."))
}

// Table is a decoded dataset. Rows hold one value per column; a nil value is
// a missing cell.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) {
	return len(t.Rows), len(t.Columns)
}

// Head returns at most n leading rows.
func (t *Table) Head(n int) [][]any {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

func (t *Table) columnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// addColumn appends a column and pads every existing row with a missing cell.
func (t *Table) addColumn(name string) int {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], nil)
	}
	return len(t.Columns) - 1
}
