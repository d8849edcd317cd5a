package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"socioprep/internal/normalize"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block the run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the
// config, e.g. "merge.joins[1].table".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidatePipeline checks p without mutating it. Struct-level rules come
// from the validate tags; the cross-reference rules (tables named in joins
// exist, key columns line up, bounds are ordered, ...) are checked here.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	issues = append(issues, structIssues(p)...)
	issues = append(issues, validateMerge(p)...)
	issues = append(issues, validateRenames(p)...)
	issues = append(issues, validateRange(p.Range)...)
	issues = append(issues, validateClean(p.Clean)...)
	return issues
}

func structIssues(p Pipeline) []Issue {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
	}
	out := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		path := strings.TrimPrefix(fe.Namespace(), "Pipeline.")
		msg := fmt.Sprintf("failed %q rule", fe.Tag())
		switch fe.Tag() {
		case "required":
			msg = "must not be empty"
		case "oneof":
			msg = fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
		case "len":
			msg = fmt.Sprintf("must have exactly %s entries", fe.Param())
		case "gte":
			msg = fmt.Sprintf("must be >= %s", fe.Param())
		case "min":
			msg = fmt.Sprintf("must have at least %s entries", fe.Param())
		}
		out = append(out, Issue{Severity: SeverityError, Path: path, Message: msg})
	}
	return out
}

func validateMerge(p Pipeline) []Issue {
	var issues []Issue
	m := p.Merge
	known := func(name string) bool { _, ok := p.Inputs[name]; return ok }

	if m.Primary != "" && !known(m.Primary) {
		issues = append(issues, Issue{SeverityError, "merge.primary",
			fmt.Sprintf("primary table %q is not an input", m.Primary)})
	}
	for _, name := range sortedKeys(m.Keys) {
		if !known(name) {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("merge.keys.%s", name),
				fmt.Sprintf("table %q is not an input", name)})
		}
	}
	for _, name := range sortedKeys(m.Project) {
		path := fmt.Sprintf("merge.project.%s", name)
		if !known(name) {
			issues = append(issues, Issue{SeverityError, path, fmt.Sprintf("table %q is not an input", name)})
			continue
		}
		if len(m.Project[name]) == 0 {
			issues = append(issues, Issue{SeverityError, path, "projection must list at least one column"})
		}
	}

	if len(m.Joins) == 0 && len(p.Inputs) > 1 {
		issues = append(issues, Issue{SeverityWarning, "merge.joins",
			"no joins configured; only the primary table reaches the output"})
	}

	seen := map[string]bool{}
	for i, j := range m.Joins {
		path := fmt.Sprintf("merge.joins[%d]", i)
		if j.Table == "" {
			continue
		}
		if !known(j.Table) {
			issues = append(issues, Issue{SeverityError, path + ".table",
				fmt.Sprintf("table %q is not an input", j.Table)})
			continue
		}
		if j.Table == m.Primary {
			issues = append(issues, Issue{SeverityError, path + ".table",
				"the primary table cannot be joined onto itself"})
		}
		if seen[j.Table] {
			issues = append(issues, Issue{SeverityWarning, path + ".table",
				fmt.Sprintf("table %q is joined more than once", j.Table)})
		}
		seen[j.Table] = true

		if cols, ok := m.Project[j.Table]; ok && !contains(cols, j.On) {
			issues = append(issues, Issue{SeverityError, path + ".on",
				fmt.Sprintf("join column %q is not in the projection of %q", j.On, j.Table)})
		}
		if k, ok := m.Keys[j.Table]; ok && keyColumn(k) == j.On {
			if pk, ok := m.Keys[m.Primary]; !ok || keyColumn(pk) != j.On {
				issues = append(issues, Issue{SeverityError, path + ".on",
					fmt.Sprintf("%q joins on synthetic key %q but the primary table does not build it", j.Table, j.On)})
			}
		}
	}
	return issues
}

// validateRenames flags rename keys that can never match because they are
// not in normalized form. Such renames are kept as no-ops at run time.
func validateRenames(p Pipeline) []Issue {
	var issues []Issue
	opt := normalize.Options{FoldAccents: p.Normalize.FoldAccents}
	for _, name := range sortedKeys(p.Normalize.Renames) {
		if _, ok := p.Inputs[name]; !ok {
			issues = append(issues, Issue{SeverityError, "normalize.renames." + name,
				fmt.Sprintf("table %q is not an input", name)})
			continue
		}
		for _, from := range sortedKeys(p.Normalize.Renames[name]) {
			if want := normalize.Name(from, opt); want != from {
				issues = append(issues, Issue{SeverityWarning, fmt.Sprintf("normalize.renames.%s.%s", name, from),
					fmt.Sprintf("rename key is not normalized and will not match; did you mean %q?", want)})
			}
		}
	}
	return issues
}

func validateRange(r Range) []Issue {
	var issues []Issue
	if (r.Start != nil || r.End != nil) && strings.TrimSpace(r.Column) == "" {
		issues = append(issues, Issue{SeverityError, "range.column", "a year column is required when bounds are set"})
	}
	if r.Start != nil && r.End != nil && *r.Start > *r.End {
		issues = append(issues, Issue{SeverityError, "range",
			fmt.Sprintf("start %d is after end %d", *r.Start, *r.End)})
	}
	return issues
}

func validateClean(c Clean) []Issue {
	var issues []Issue
	if len(c.Impute.Columns) > 0 && strings.TrimSpace(c.Impute.GroupBy) == "" {
		issues = append(issues, Issue{SeverityError, "clean.impute.group_by", "group_by is required when columns are imputed"})
	}
	if c.MinNonMissing != nil && *c.MinNonMissing < 0 {
		issues = append(issues, Issue{SeverityError, "clean.min_non_missing", "must not be negative"})
	}
	return issues
}

func keyColumn(k Key) string {
	if k.Column == "" {
		return DefaultKeyColumn
	}
	return k.Column
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
