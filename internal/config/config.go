// Package config defines the pipeline configuration model. A pipeline file
// (JSON, or YAML when the extension is .yaml/.yml) names every input table,
// the per-table renames, the synthetic join keys and projections, the join
// order, the year window and the null-cleaning policy. All column names the
// pipeline touches live here, so a run can be checked up front instead of
// failing on a late column lookup.
//
// Example (trimmed):
//
//	{
//	  "job": "poverty_education",
//	  "inputs": { "df1": { "path": "pip.csv" }, "df3": { "path": "schooling.csv" } },
//	  "normalize": { "renames": { "df3": { "expected_years_of_schooling": "expected_years_school" } } },
//	  "merge": {
//	    "primary": "df1",
//	    "keys": { "df1": { "parts": ["country_code", "reporting_year"] }, "df3": { "parts": ["code", "year"] } },
//	    "joins": [ { "table": "df3", "on": "codigo" } ]
//	  },
//	  "range": { "column": "reporting_year", "start": 2000, "end": 2019 },
//	  "clean": { "impute": { "columns": ["expected_years_school"], "group_by": "country_name" } }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// Clean orders.
const (
	OrderImputeFirst = "impute-first"
	OrderPruneFirst  = "prune-first"
)

// Fill methods.
const (
	MethodMean   = "mean"
	MethodMedian = "median"
)

// DefaultKeyColumn is the name of the synthetic join key.
const DefaultKeyColumn = "codigo"

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels logs and metrics for this run.
	Job string `json:"job" yaml:"job" validate:"required"`

	// Inputs maps a logical table name to where it is read from.
	Inputs map[string]Input `json:"inputs" yaml:"inputs" validate:"required,min=1,dive"`

	Normalize Normalize `json:"normalize" yaml:"normalize"`
	Merge     Merge     `json:"merge" yaml:"merge"`
	Range     Range     `json:"range" yaml:"range"`
	Clean     Clean     `json:"clean" yaml:"clean"`
	Output    Output    `json:"output" yaml:"output"`
}

// Input locates one table.
type Input struct {
	// Path is a local file path or an http(s) URL.
	Path string `json:"path" yaml:"path" validate:"required"`

	// Options are parser settings: comma (string), trim_space (bool),
	// infer_types (bool, default true), sheet (string, xlsx only).
	Options Options `json:"options" yaml:"options"`
}

// Normalize configures column-name normalization.
type Normalize struct {
	// FoldAccents strips diacritics from column names after lower-casing.
	FoldAccents bool `json:"fold_accents" yaml:"fold_accents"`

	// Renames maps table -> {normalized name: canonical name}. Keys must be
	// written in normalized form (lower-case, underscores) to match.
	Renames map[string]map[string]string `json:"renames" yaml:"renames"`
}

// Merge configures key construction, projection and the join sequence.
type Merge struct {
	Primary string `json:"primary" yaml:"primary" validate:"required"`

	// Keys maps table -> synthetic key spec.
	Keys map[string]Key `json:"keys" yaml:"keys" validate:"dive"`

	// Project maps table -> columns kept before joining. Tables without an
	// entry keep every column.
	Project map[string][]string `json:"project" yaml:"project"`

	// Joins run in order, each one left-joining onto the accumulated result.
	Joins []Join `json:"joins" yaml:"joins" validate:"dive"`
}

// Key builds Column = Parts[0] + Separator + Parts[1].
type Key struct {
	Column    string   `json:"column" yaml:"column"`
	Parts     []string `json:"parts" yaml:"parts" validate:"len=2,dive,required"`
	Separator string   `json:"separator" yaml:"separator"`
}

// Join names the right-hand table and the column both sides share.
type Join struct {
	Table string `json:"table" yaml:"table" validate:"required"`
	On    string `json:"on" yaml:"on" validate:"required"`
}

// Range restricts rows to an inclusive year window. Nil bounds are open.
type Range struct {
	Column string `json:"column" yaml:"column"`
	Start  *int   `json:"start" yaml:"start"`
	End    *int   `json:"end" yaml:"end"`

	// AsDate rewrites the column to a date (January 1st of the year).
	AsDate bool `json:"as_date" yaml:"as_date"`
}

// Clean configures null imputation and row pruning.
type Clean struct {
	Order  string `json:"order" yaml:"order" validate:"omitempty,oneof=impute-first prune-first"`
	Impute Impute `json:"impute" yaml:"impute"`

	// MinNonMissing is the minimum number of non-missing cells a row needs
	// to survive. Nil means column count - 3.
	MinNonMissing *int `json:"min_non_missing" yaml:"min_non_missing"`

	// Required columns must be non-missing after cleaning.
	Required []string `json:"required" yaml:"required"`
}

// Impute configures grouped fill.
type Impute struct {
	Columns []string `json:"columns" yaml:"columns"`
	GroupBy string   `json:"group_by" yaml:"group_by"`
	Method  string   `json:"method" yaml:"method" validate:"omitempty,oneof=mean median"`
}

// Output configures what happens with the cleaned table.
type Output struct {
	PreviewRows int      `json:"preview_rows" yaml:"preview_rows" validate:"gte=0"`
	CSVPath     string   `json:"csv_path" yaml:"csv_path"`
	Storage     *Storage `json:"storage" yaml:"storage"`
}

// Storage configures the optional database sink.
type Storage struct {
	Kind            string `json:"kind" yaml:"kind" validate:"required,oneof=postgres sqlite mysql mssql"`
	DSN             string `json:"dsn" yaml:"dsn" validate:"required"`
	Table           string `json:"table" yaml:"table" validate:"required"`
	AutoCreateTable bool   `json:"auto_create_table" yaml:"auto_create_table"`
	BatchSize       int    `json:"batch_size" yaml:"batch_size" validate:"gte=0"`
}

// ApplyDefaults fills in the implicit values of p.
func (p *Pipeline) ApplyDefaults() {
	for name, k := range p.Merge.Keys {
		if k.Column == "" {
			k.Column = DefaultKeyColumn
		}
		if k.Separator == "" {
			k.Separator = "_"
		}
		p.Merge.Keys[name] = k
	}
	if p.Clean.Order == "" {
		p.Clean.Order = OrderImputeFirst
	}
	if p.Clean.Impute.Method == "" {
		p.Clean.Impute.Method = MethodMean
	}
	if p.Output.PreviewRows == 0 {
		p.Output.PreviewRows = 5
	}
	if p.Output.Storage != nil && p.Output.Storage.BatchSize == 0 {
		p.Output.Storage.BatchSize = 1000
	}
	for name, in := range p.Inputs {
		if in.Options == nil {
			in.Options = Options{}
			p.Inputs[name] = in
		}
	}
}

// Load decodes the pipeline file at path and applies defaults.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(b, &p); err != nil {
			return p, fmt.Errorf("decode yaml config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &p); err != nil {
			return p, fmt.Errorf("decode json config %s: %w", path, err)
		}
	}
	p.ApplyDefaults()
	return p, nil
}
