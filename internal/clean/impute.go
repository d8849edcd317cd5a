package clean

import (
	"errors"
	"fmt"
	"sort"

	"socioprep/internal/table"
	"socioprep/pkg/records"
)

// Fill methods.
const (
	Mean   = "mean"
	Median = "median"
)

// ErrNotNumeric is returned when imputation meets a value it cannot average.
var ErrNotNumeric = errors.New("value is not numeric")

// ImputeSpec fills missing values of Columns with the Method statistic of
// their GroupBy group.
type ImputeSpec struct {
	Columns []string
	GroupBy string
	Method  string
}

// Impute returns a copy of t with missing values filled and the number of
// cells it filled. A group with no value for a column stays missing, as do
// rows whose group key is missing.
func Impute(t *table.Table, spec ImputeSpec) (*table.Table, int, error) {
	if len(spec.Columns) == 0 {
		return t.Clone(), 0, nil
	}
	if err := t.Require("impute", spec.GroupBy); err != nil {
		return nil, 0, err
	}
	if err := t.Require("impute", spec.Columns...); err != nil {
		return nil, 0, err
	}
	stat := mean
	switch spec.Method {
	case "", Mean:
	case Median:
		stat = median
	default:
		return nil, 0, fmt.Errorf("impute: unknown method %q", spec.Method)
	}

	out := t.Clone()
	filled := 0
	for _, col := range spec.Columns {
		groups := map[string][]float64{}
		for i, r := range out.Rows {
			g, ok := groupKey(r, spec.GroupBy)
			if !ok {
				continue
			}
			v := r[col]
			if records.IsMissing(v) {
				continue
			}
			f, ok := records.Float(v)
			if !ok {
				return nil, 0, fmt.Errorf("impute %q row %d: %v: %w", col, i, v, ErrNotNumeric)
			}
			groups[g] = append(groups[g], f)
		}

		fill := make(map[string]float64, len(groups))
		for g, vals := range groups {
			fill[g] = stat(vals)
		}
		for _, r := range out.Rows {
			if !records.IsMissing(r[col]) {
				continue
			}
			g, ok := groupKey(r, spec.GroupBy)
			if !ok {
				continue
			}
			if v, ok := fill[g]; ok {
				r[col] = v
				filled++
			}
		}
	}
	return out, filled, nil
}

func groupKey(r records.Record, col string) (string, bool) {
	v := r[col]
	if records.IsMissing(v) {
		return "", false
	}
	return records.String(v), true
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
