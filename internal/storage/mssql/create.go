package mssql

import (
	"fmt"
	"strings"

	"socioprep/internal/storage"
)

func sqlType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeFloat:
		return "FLOAT"
	case storage.TypeBool:
		return "BIT"
	case storage.TypeDate:
		return "DATE"
	}
	return "NVARCHAR(MAX)"
}

// BuildCreateTableSQL renders a guarded CREATE TABLE; SQL Server has no
// CREATE TABLE IF NOT EXISTS.
func BuildCreateTableSQL(td storage.TableDef) (string, error) {
	cols := make([]string, 0, len(td.Columns))
	for _, c := range td.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("mssql ddl: column with empty name in table %s", td.FQN)
		}
		null := " NULL"
		if !c.Nullable {
			null = " NOT NULL"
		}
		cols = append(cols, quoteIdent(c.Name)+" "+sqlType(c.Type)+null)
	}
	fqn := quoteFQN(td.FQN)
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n  %s\n);",
		strings.ReplaceAll(fqn, "'", "''"), fqn, strings.Join(cols, ",\n  ")), nil
}

func quoteIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

func quoteFQN(name string) string {
	parts := storage.SplitFQN(name)
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}
