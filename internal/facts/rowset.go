package facts

// RowSet is an ordered tabular result: a fixed column list and rows in
// extraction order. Every row has a value slot for every column; absent
// values are nil, never omitted.
type RowSet struct {
	Columns []string
	Rows    [][]interface{}
}

// Len returns the number of rows.
func (rs RowSet) Len() int { return len(rs.Rows) }

// Empty reports whether the row set has no rows.
func (rs RowSet) Empty() bool { return len(rs.Rows) == 0 }

// ColumnIndex returns the position of a column, or -1 when absent.
func (rs RowSet) ColumnIndex(name string) int {
	for i, c := range rs.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
