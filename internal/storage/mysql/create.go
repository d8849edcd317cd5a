package mysql

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
		return "DOUBLE"
	case storage.TypeBool:
		return "BOOLEAN"
	case storage.TypeDate:
		return "DATE"
	}
	return "TEXT"
}

// BuildCreateTableSQL renders CREATE TABLE IF NOT EXISTS with backtick
// identifiers.
func BuildCreateTableSQL(td storage.TableDef) (string, error) {
	cols := make([]string, 0, len(td.Columns))
	for _, c := range td.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("mysql ddl: column with empty name in table %s", td.FQN)
		}
		def := quoteIdent(c.Name) + " " + sqlType(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteFQN(td.FQN), strings.Join(cols, ", ")), nil
}

func quoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func quoteFQN(f string) string {
	parts := storage.SplitFQN(f)
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}
