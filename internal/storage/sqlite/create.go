package sqlite

import (
	"fmt"
	"strings"

	"socioprep/internal/storage"
)

func sqlType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInteger, storage.TypeBool:
		return "INTEGER"
	case storage.TypeFloat:
		return "REAL"
	}
	return "TEXT"
}

// BuildCreateTableSQL renders CREATE TABLE IF NOT EXISTS. Dates are stored
// as ISO text.
func BuildCreateTableSQL(td storage.TableDef) (string, error) {
	cols := make([]string, 0, len(td.Columns))
	for _, c := range td.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("sqlite ddl: column with empty name in table %s", td.FQN)
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
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func quoteFQN(f string) string {
	parts := storage.SplitFQN(f)
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}
