package domain

// Cell is one (column, value) pair of a source row.
type Cell struct {
	Column string
	Value  string
}

// RawRow represents one decoded source line. Cells keep header order so
// everything derived from the row is deterministic.
// A column missing from a short line is absent; a present but blank value is "".
type RawRow struct {
	Line  int    // 1-based line number in the source file (header is line 1)
	Cells []Cell // header order, only columns present on this line
}

// Get returns the raw value of a column and whether the column is present at all.
func (r RawRow) Get(column string) (string, bool) {
	for _, c := range r.Cells {
		if c.Column == column {
			return c.Value, true
		}
	}
	return "", false
}

// Columns returns the column names present on this row, in header order.
func (r RawRow) Columns() []string {
	cols := make([]string, 0, len(r.Cells))
	for _, c := range r.Cells {
		cols = append(cols, c.Column)
	}
	return cols
}
