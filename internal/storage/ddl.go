package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"socioprep/internal/table"
	"socioprep/pkg/records"
)

// ColumnType is the backend-neutral type of a column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeFloat
	TypeBool
	TypeDate
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	}
	return "text"
}

// ColumnDef describes one destination column.
type ColumnDef struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// TableDef is a table name (optionally schema-qualified) plus its columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// DDLBuilder renders a CREATE TABLE IF NOT EXISTS statement in a backend's
// dialect.
type DDLBuilder func(td TableDef) (string, error)

var (
	ddlMu       sync.RWMutex
	ddlBuilders = map[string]DDLBuilder{}
)

// RegisterDDL installs (or replaces) the DDL builder for kind.
func RegisterDDL(kind string, fn DDLBuilder) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlBuilders[kind] = fn
}

// BuildDDL renders td with the builder registered for kind.
func BuildDDL(kind string, td TableDef) (string, error) {
	ddlMu.RLock()
	fn, ok := ddlBuilders[kind]
	ddlMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("storage: no DDL builder: %w %q", ErrUnsupported, kind)
	}
	if strings.TrimSpace(td.FQN) == "" {
		return "", fmt.Errorf("storage: table name must not be empty")
	}
	if len(td.Columns) == 0 {
		return "", fmt.Errorf("storage: table %s needs at least one column", td.FQN)
	}
	return fn(td)
}

// EnsureTable creates the destination table when it does not exist yet.
func EnsureTable(ctx context.Context, kind string, repo Repository, td TableDef) error {
	stmt, err := BuildDDL(kind, td)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("storage: create table %s: %w", td.FQN, err)
	}
	return nil
}

// InferColumns derives a column definition for every column of t from the
// values it holds. Integers mixed with floats widen to float; any other mix,
// and all-missing columns, become text.
func InferColumns(t *table.Table) []ColumnDef {
	out := make([]ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		def := ColumnDef{Name: c}
		seen := false
		for _, r := range t.Rows {
			v := r[c]
			if records.IsMissing(v) {
				def.Nullable = true
				continue
			}
			vt := typeOf(v)
			switch {
			case !seen:
				def.Type, seen = vt, true
			case def.Type == vt:
			case isNumeric(def.Type) && isNumeric(vt):
				def.Type = TypeFloat
			default:
				def.Type = TypeText
			}
		}
		if !seen {
			def.Type, def.Nullable = TypeText, true
		}
		out[i] = def
	}
	return out
}

func typeOf(v any) ColumnType {
	switch v.(type) {
	case int64, int:
		return TypeInteger
	case float64:
		return TypeFloat
	case bool:
		return TypeBool
	case time.Time:
		return TypeDate
	}
	return TypeText
}

func isNumeric(t ColumnType) bool { return t == TypeInteger || t == TypeFloat }

// Rows converts t to positional rows in column order. Missing cells become
// nil and text columns hold text, so drivers see one Go type per column.
func Rows(t *table.Table, defs []ColumnDef) [][]any {
	out := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]any, len(defs))
		for j, d := range defs {
			v := r[d.Name]
			switch {
			case records.IsMissing(v):
				row[j] = nil
			case d.Type == TypeText:
				row[j] = records.String(v)
			case d.Type == TypeFloat:
				f, _ := records.Float(v)
				row[j] = f
			default:
				row[j] = v
			}
		}
		out[i] = row
	}
	return out
}

// SplitFQN splits "schema.table" into its non-empty parts.
func SplitFQN(fqn string) []string {
	parts := strings.Split(fqn, ".")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
