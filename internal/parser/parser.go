// Package parser turns raw input bytes into a table.Table.
package parser

import (
	"io"
	"path"
	"strings"

	csvparser "socioprep/internal/parser/csv"
	xlsxparser "socioprep/internal/parser/xlsx"
	"socioprep/internal/table"
)

// Parser reads one table from r. name becomes the table's Name.
type Parser interface {
	Parse(r io.Reader, name string) (*table.Table, error)
}

// Options are the per-input parsing knobs shared by all formats.
type Options struct {
	Comma      rune
	TrimSpace  bool
	InferTypes bool
	Sheet      string
}

// ForPath picks the parser from the file extension of p (URL query strings
// are ignored): ".xlsx" reads a workbook, everything else is CSV.
func ForPath(p string, opt Options) Parser {
	clean := p
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if strings.EqualFold(path.Ext(clean), ".xlsx") {
		return xlsxparser.NewParser(xlsxparser.Options{
			Sheet:      opt.Sheet,
			TrimSpace:  opt.TrimSpace,
			InferTypes: opt.InferTypes,
		})
	}
	return csvparser.NewParser(csvparser.Options{
		Comma:      opt.Comma,
		TrimSpace:  opt.TrimSpace,
		InferTypes: opt.InferTypes,
	})
}
