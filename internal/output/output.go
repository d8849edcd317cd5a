// Package output renders a table for humans (an aligned preview) and for
// other tools (CSV).
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"socioprep/internal/table"
	"socioprep/pkg/records"
)

// Preview writes the first n rows of t as aligned columns followed by a
// one-line size summary. Missing cells print as "NaN".
func Preview(w io.Writer, t *table.Table, n int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, c := range t.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)

	shown := t.Head(n)
	if n <= 0 {
		shown = table.New(t.Name, t.Columns)
	}
	for _, r := range shown.Rows {
		for i, c := range t.Columns {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell(r[c]))
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "[%s rows x %d columns]\n", humanize.Comma(int64(t.Len())), len(t.Columns))
	return err
}

func cell(v any) string {
	if records.IsMissing(v) {
		return "NaN"
	}
	return records.String(v)
}

// WriteCSV writes a header and every row of t. Missing cells are empty.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for i, r := range t.Rows {
		for j, c := range t.Columns {
			rec[j] = records.String(r[c])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
