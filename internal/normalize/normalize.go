// Package normalize canonicalizes column names: lower-case, spaces replaced
// by underscores, then an optional per-table rename dictionary.
//
// Rename keys are matched against the already-normalized names. A key
// written in the source's original spelling ("Expected years of schooling")
// matches nothing and is a no-op; such keys are returned in Report.Unmatched
// so the caller can warn about them.
package normalize

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"socioprep/internal/table"
	"socioprep/pkg/records"
)

// ErrDuplicateColumn means two columns ended up with the same name.
var ErrDuplicateColumn = errors.New("duplicate column after normalization")

// Options tunes Name.
type Options struct {
	// FoldAccents strips combining marks, e.g. "Año" -> "ano".
	FoldAccents bool
}

// Report describes what Columns did to one table.
type Report struct {
	// Renamed maps normalized name -> final name for renames that applied.
	Renamed map[string]string
	// Unmatched lists rename keys that matched no column, sorted.
	Unmatched []string
}

// Name normalizes a single column name.
func Name(s string, opt Options) string {
	s = cases.Lower(language.Und).String(s)
	if opt.FoldAccents {
		t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		if folded, _, err := transform.String(t, s); err == nil {
			s = folded
		}
	}
	return strings.ReplaceAll(s, " ", "_")
}

// Columns returns a copy of t with normalized, then renamed, column names.
// Rename targets are normalized too, so every resulting name is lower-case
// and free of spaces.
func Columns(t *table.Table, renames map[string]string, opt Options) (*table.Table, Report, error) {
	rep := Report{Renamed: map[string]string{}}

	final := make([]string, len(t.Columns))
	used := make(map[string]string, len(t.Columns))
	for i, src := range t.Columns {
		n := Name(src, opt)
		if to, ok := renames[n]; ok {
			to = Name(to, opt)
			rep.Renamed[n] = to
			n = to
		}
		if prev, dup := used[n]; dup {
			return nil, rep, fmt.Errorf("table %q: columns %q and %q both become %q: %w",
				t.Name, prev, src, n, ErrDuplicateColumn)
		}
		used[n] = src
		final[i] = n
	}

	for from := range renames {
		if _, ok := rep.Renamed[from]; !ok {
			rep.Unmatched = append(rep.Unmatched, from)
		}
	}
	sort.Strings(rep.Unmatched)

	out := table.New(t.Name, final)
	out.Rows = make([]records.Record, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(records.Record, len(final))
		for j, src := range t.Columns {
			nr[final[j]] = r[src]
		}
		out.Rows[i] = nr
	}
	return out, rep, nil
}
