// Package dataset holds the in-memory job postings table and its CSV codec.
package dataset

import (
	"fmt"
)

// Table is an ordered set of rows sharing one header. Rows have no identity
// beyond their position.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Cell
}

// NewTable creates an empty table with the given header
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)

	index := make(map[string]int, len(cols))
	for i, name := range cols {
		if _, exists := index[name]; !exists {
			index[name] = i
		}
	}

	return &Table{
		columns: cols,
		index:   index,
	}
}

// Columns returns a copy of the header
func (t *Table) Columns() []string {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// HasColumn reports whether the header contains field
func (t *Table) HasColumn(field string) bool {
	_, ok := t.index[field]
	return ok
}

// Index returns the position of field in the header
func (t *Table) Index(field string) (int, bool) {
	i, ok := t.index[field]
	return i, ok
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Append adds a row; it must have exactly one cell per column
func (t *Table) Append(row []Cell) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.columns))
	}
	t.rows = append(t.rows, row)
	return nil
}

// Get returns the cell at row for field. Unknown fields read as absent.
func (t *Table) Get(row int, field string) Cell {
	i, ok := t.index[field]
	if !ok {
		return Absent()
	}
	return t.rows[row][i]
}

// Set replaces the cell at row for field. Unknown fields are ignored.
func (t *Table) Set(row int, field string, cell Cell) {
	i, ok := t.index[field]
	if !ok {
		return
	}
	t.rows[row][i] = cell
}

// Row returns the cells of one row
func (t *Table) Row(row int) []Cell {
	return t.rows[row]
}

// Filter returns a new table with the rows for which keep returns true.
// Rows are shared with the receiver.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := NewTable(t.columns)
	for i, r := range t.rows {
		if keep(i) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	out := NewTable(t.columns)
	out.rows = make([][]Cell, len(t.rows))
	for i, r := range t.rows {
		cp := make([]Cell, len(r))
		copy(cp, r)
		out.rows[i] = cp
	}
	return out
}

// Equal reports whether both tables have the same header and cells
func (t *Table) Equal(other *Table) bool {
	if len(t.columns) != len(other.columns) || len(t.rows) != len(other.rows) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != other.columns[i] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if !t.rows[i][j].Equal(other.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// Records renders the table, header first, as text records
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.rows)+1)
	records = append(records, t.Columns())
	for _, r := range t.rows {
		rec := make([]string, len(r))
		for j, c := range r {
			rec[j] = c.Format()
		}
		records = append(records, rec)
	}
	return records
}
