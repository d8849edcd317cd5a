package clean

import (
	"fmt"

	"socioprep/internal/table"
	"socioprep/pkg/records"
)

// Clean orders.
const (
	ImputeFirst = "impute-first"
	PruneFirst  = "prune-first"
)

// PruneSpec selects the rows to drop.
type PruneSpec struct {
	// MinNonMissing is the number of non-missing cells a row needs. Nil
	// means column count - 3, floored at 0.
	MinNonMissing *int
	// Required columns must not be missing.
	Required []string
}

// Threshold resolves MinNonMissing for a table with ncols columns.
func (p PruneSpec) Threshold(ncols int) int {
	if p.MinNonMissing != nil {
		return *p.MinNonMissing
	}
	return max(ncols-3, 0)
}

// Spec combines imputation and pruning.
type Spec struct {
	Order  string
	Impute ImputeSpec
	Prune  PruneSpec
}

// Stats reports what Clean did.
type Stats struct {
	Order            string `json:"order"`
	Threshold        int    `json:"threshold"`
	Imputed          int    `json:"imputed"`
	DroppedThreshold int    `json:"dropped_threshold"`
	DroppedRequired  int    `json:"dropped_required"`
}

// Prune drops rows below the non-missing threshold, then rows missing a
// required column.
func Prune(t *table.Table, spec PruneSpec) (*table.Table, Stats, error) {
	var st Stats
	if err := t.Require("prune", spec.Required...); err != nil {
		return nil, st, err
	}
	out, th, dropped := dropBelowThreshold(t, spec)
	st.Threshold, st.DroppedThreshold = th, dropped
	out, st.DroppedRequired = dropMissingRequired(out, spec.Required)
	return out, st, nil
}

// Clean runs imputation and pruning in spec.Order:
//
//	impute-first: impute, threshold drop, required drop
//	prune-first:  threshold drop, impute, required drop
func Clean(t *table.Table, spec Spec) (*table.Table, Stats, error) {
	st := Stats{Order: spec.Order}
	if st.Order == "" {
		st.Order = ImputeFirst
	}
	if err := t.Require("clean", spec.Prune.Required...); err != nil {
		return nil, st, err
	}

	var (
		out = t
		err error
	)
	switch st.Order {
	case ImputeFirst:
		if out, st.Imputed, err = Impute(out, spec.Impute); err != nil {
			return nil, st, err
		}
		out, st.Threshold, st.DroppedThreshold = dropBelowThreshold(out, spec.Prune)
	case PruneFirst:
		out, st.Threshold, st.DroppedThreshold = dropBelowThreshold(out, spec.Prune)
		if out, st.Imputed, err = Impute(out, spec.Impute); err != nil {
			return nil, st, err
		}
	default:
		return nil, st, fmt.Errorf("clean: unknown order %q", spec.Order)
	}
	out, st.DroppedRequired = dropMissingRequired(out, spec.Prune.Required)
	return out, st, nil
}

func dropBelowThreshold(t *table.Table, spec PruneSpec) (*table.Table, int, int) {
	th := spec.Threshold(len(t.Columns))
	out := table.New(t.Name, t.Columns)
	for _, r := range t.Rows {
		if len(t.Columns)-t.Missing(r) >= th {
			out.Append(r.Clone())
		}
	}
	return out, th, t.Len() - out.Len()
}

func dropMissingRequired(t *table.Table, required []string) (*table.Table, int) {
	out := table.New(t.Name, t.Columns)
	for _, r := range t.Rows {
		keep := true
		for _, c := range required {
			if records.IsMissing(r[c]) {
				keep = false
				break
			}
		}
		if keep {
			out.Append(r.Clone())
		}
	}
	return out, t.Len() - out.Len()
}
