// Package table holds the in-memory Table every pipeline stage consumes and
// produces.
//
// Stages never mutate a Table they were handed. They build a new one (Clone,
// Select, or a fresh New) and return it, so a table may safely feed more than
// one downstream branch.
package table

import (
	"errors"
	"fmt"
	"strings"

	"socioprep/pkg/records"
)

// ErrUnknownColumn is the sentinel all schema mismatches unwrap to.
var ErrUnknownColumn = errors.New("unknown column")

// SchemaError reports a column that a stage needs but the table lacks.
type SchemaError struct {
	Table     string
	Column    string
	Stage     string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: table %q has no column %q (available: %s)",
		e.Stage, e.Table, e.Column, strings.Join(e.Available, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrUnknownColumn }

// Table is a named, ordered collection of rows.
type Table struct {
	Name    string
	Columns []string
	Rows    []records.Record
}

// New returns an empty table with the given columns.
func New(name string, columns []string) *Table {
	return &Table{Name: name, Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of col in Columns, or -1.
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Has reports whether col is one of the table's columns.
func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// Require returns a SchemaError for the first column in cols the table lacks.
func (t *Table) Require(stage string, cols ...string) error {
	for _, c := range cols {
		if !t.Has(c) {
			return &SchemaError{
				Table:     t.Name,
				Column:    c,
				Stage:     stage,
				Available: append([]string(nil), t.Columns...),
			}
		}
	}
	return nil
}

// Append adds a row.
func (t *Table) Append(r records.Record) { t.Rows = append(t.Rows, r) }

// Clone returns a copy whose columns and rows can be changed without
// affecting t.
func (t *Table) Clone() *Table {
	out := New(t.Name, t.Columns)
	out.Rows = make([]records.Record, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Select projects the table onto cols, in the order given.
func (t *Table) Select(cols ...string) (*Table, error) {
	if err := t.Require("select", cols...); err != nil {
		return nil, err
	}
	out := New(t.Name, cols)
	out.Rows = make([]records.Record, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(records.Record, len(cols))
		for _, c := range cols {
			nr[c] = r[c]
		}
		out.Rows[i] = nr
	}
	return out, nil
}

// Head returns a copy of the first n rows (all rows when n <= 0 or n exceeds
// the row count).
func (t *Table) Head(n int) *Table {
	if n <= 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := New(t.Name, t.Columns)
	out.Rows = make([]records.Record, n)
	for i := 0; i < n; i++ {
		out.Rows[i] = t.Rows[i].Clone()
	}
	return out
}

// Column returns every value of col in row order.
func (t *Table) Column(col string) []any {
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[col]
	}
	return out
}

// Missing counts the missing cells of r across the table's columns.
func (t *Table) Missing(r records.Record) int {
	n := 0
	for _, c := range t.Columns {
		if records.IsMissing(r[c]) {
			n++
		}
	}
	return n
}
