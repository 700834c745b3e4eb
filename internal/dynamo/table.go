package dynamo

import "fmt"

// Table is a labelled time series: one row per sample, one column per signal.
type Table struct {
	Columns []string
	Times   []float64
	Rows    [][]float64
}

func NewTable(signals Signals) *Table {
	return &Table{Columns: signals.Names()}
}

func (t *Table) Len() int { return len(t.Rows) }

// Append adds a copy of row sampled at time ts.
func (t *Table) Append(ts float64, row []float64) error {
	if len(row) != len(t.Columns) {
		return fmtDims("table row", len(t.Columns), len(row))
	}
	r := make([]float64, len(row))
	copy(r, row)
	t.Rows = append(t.Rows, r)
	t.Times = append(t.Times, ts)
	return nil
}

// Extend appends every row of other. Column sets must match exactly.
func (t *Table) Extend(other *Table) error {
	if other == nil {
		return nil
	}
	if len(other.Columns) != len(t.Columns) {
		return fmtDims("table columns", len(t.Columns), len(other.Columns))
	}
	for i, c := range other.Columns {
		if c != t.Columns[i] {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrDimensionMismatch, i, c, t.Columns[i])
		}
	}
	for i, row := range other.Rows {
		if err := t.Append(other.Times[i], row); err != nil {
			return err
		}
	}
	return nil
}

// Column returns the samples of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	col := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		col[i] = row[idx]
	}
	return col, true
}

// Last returns the most recent row or nil.
func (t *Table) Last() []float64 {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[len(t.Rows)-1]
}
