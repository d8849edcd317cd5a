package pipeline

import (
	"fmt"

	"socioprep/internal/config"
	"socioprep/internal/merge"
	"socioprep/internal/table"
)

// CheckSchema verifies, before any row is touched, that every column the
// pipeline refers to exists: key parts, projections, join columns, the year
// column and the cleaning columns. It dry-runs the merge on empty tables so
// the merged column names (including _x/_y suffixes) are exact.
func CheckSchema(cfg config.Pipeline, tables map[string]*table.Table) error {
	shape := func(name string) (*table.Table, error) {
		t, ok := tables[name]
		if !ok {
			return nil, fmt.Errorf("table %q was not loaded", name)
		}
		if k, ok := cfg.Merge.Keys[name]; ok {
			if err := t.Require("merge key", k.Parts...); err != nil {
				return nil, err
			}
		}
		return prepared(cfg, name, table.New(t.Name, t.Columns))
	}

	primary, err := shape(cfg.Merge.Primary)
	if err != nil {
		return err
	}
	joins := make([]merge.Join, 0, len(cfg.Merge.Joins))
	for _, j := range cfg.Merge.Joins {
		right, err := shape(j.Table)
		if err != nil {
			return err
		}
		joins = append(joins, merge.Join{Right: right, On: j.On})
	}
	merged, _, err := merge.Merge(primary, joins)
	if err != nil {
		return err
	}

	if cfg.Range.Start != nil || cfg.Range.End != nil || cfg.Range.AsDate {
		if err := merged.Require("range", cfg.Range.Column); err != nil {
			return err
		}
	}
	if len(cfg.Clean.Impute.Columns) > 0 {
		if err := merged.Require("impute", cfg.Clean.Impute.GroupBy); err != nil {
			return err
		}
		if err := merged.Require("impute", cfg.Clean.Impute.Columns...); err != nil {
			return err
		}
	}
	return merged.Require("clean", cfg.Clean.Required...)
}
