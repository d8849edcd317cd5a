// Package merge builds the synthetic join keys, projects each input down to
// the columns it contributes and left-joins the auxiliary tables onto the
// primary one in a fixed order.
package merge

import (
	"errors"
	"fmt"

	"socioprep/internal/table"
	"socioprep/pkg/records"
)

// ErrMissingKeyColumn is returned when a key part names a column the table
// does not have.
var ErrMissingKeyColumn = errors.New("merge key column missing")

// DefaultSep joins the two key parts when KeySpec.Sep is empty.
const DefaultSep = "_"

// KeySpec describes a synthetic key: Column = Parts[0] + Sep + Parts[1].
type KeySpec struct {
	Column string
	Parts  [2]string
	Sep    string
}

// AddKey returns a copy of t with spec.Column appended (or overwritten when it
// already exists). A row whose part values are missing gets a missing key.
func AddKey(t *table.Table, spec KeySpec) (*table.Table, error) {
	for _, p := range spec.Parts {
		if !t.Has(p) {
			return nil, fmt.Errorf("table %q: build %q from %q: %w (available: %v)",
				t.Name, spec.Column, p, ErrMissingKeyColumn, t.Columns)
		}
	}

	if spec.Sep == "" {
		spec.Sep = DefaultSep
	}
	out := t.Clone()
	if !out.Has(spec.Column) {
		out.Columns = append(out.Columns, spec.Column)
	}
	for _, r := range out.Rows {
		r[spec.Column] = keyValue(r[spec.Parts[0]], r[spec.Parts[1]], spec.Sep)
	}
	return out, nil
}

func keyValue(a, b any, sep string) any {
	if records.IsMissing(a) || records.IsMissing(b) {
		return nil
	}
	return records.String(a) + sep + records.String(b)
}

// Project keeps only cols, in that order.
func Project(t *table.Table, cols []string) (*table.Table, error) {
	if len(cols) == 0 {
		return t.Clone(), nil
	}
	out, err := t.Select(cols...)
	if err != nil {
		var se *table.SchemaError
		if errors.As(err, &se) {
			se.Stage = "project"
		}
		return nil, err
	}
	return out, nil
}
