// Package clean restricts the merged table to a year window and deals with
// missing values: grouped imputation, a non-missing-count threshold and a
// list of columns that must be present.
package clean

import (
	"math"
	"strconv"
	"strings"
	"time"

	"socioprep/internal/table"
	"socioprep/pkg/records"
)

// Range is an inclusive year window. A nil bound is open.
type Range struct {
	Start *int
	End   *int
	// AsDate rewrites the filtered column to January 1st of the year.
	AsDate bool
}

// Bounded reports whether either bound is set.
func (r Range) Bounded() bool { return r.Start != nil || r.End != nil }

// Contains reports whether year falls inside the window.
func (r Range) Contains(year int) bool {
	if r.Start != nil && year < *r.Start {
		return false
	}
	if r.End != nil && year > *r.End {
		return false
	}
	return true
}

// YearOf extracts a year from an integer, a whole float, numeric text, an ISO
// date (or RFC 3339 timestamp) or a time.Time.
func YearOf(v any) (int, bool) {
	if records.IsMissing(v) {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return int(t), true
	case int:
		return t, true
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int(t), true
	case time.Time:
		return t.Year(), true
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return YearOf(f)
		}
		for _, layout := range []string{records.DateLayout, time.RFC3339} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.Year(), true
			}
		}
	}
	return 0, false
}

// AsDate returns January 1st of year, UTC.
func AsDate(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// FilterYears keeps the rows of t whose column year lies in r. With no
// bounds every row is kept. Rows without a usable year are dropped when a
// bound is set.
func FilterYears(t *table.Table, column string, r Range) (*table.Table, error) {
	if !r.Bounded() && !r.AsDate {
		return t.Clone(), nil
	}
	if err := t.Require("range", column); err != nil {
		return nil, err
	}

	out := table.New(t.Name, t.Columns)
	for _, row := range t.Rows {
		year, ok := YearOf(row[column])
		if r.Bounded() && (!ok || !r.Contains(year)) {
			continue
		}
		nr := row.Clone()
		if r.AsDate && ok {
			nr[column] = AsDate(year)
		}
		out.Append(nr)
	}
	return out, nil
}
