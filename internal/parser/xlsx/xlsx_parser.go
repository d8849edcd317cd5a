// Package xlsx reads one worksheet of an Excel workbook into a table.Table.
// The first row of the sheet is the header, with repeated names renamed
// as in the CSV parser; short rows are padded with
// missing values because excelize omits trailing empty cells.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	csvparser "socioprep/internal/parser/csv"
	"socioprep/internal/table"
	"socioprep/pkg/records"
)

// Options configures the workbook parser.
type Options struct {
	// Sheet selects the worksheet; the first sheet when empty.
	Sheet string

	// TrimSpace trims surrounding whitespace from data cells.
	TrimSpace bool

	// InferTypes converts cells with records.Infer.
	InferTypes bool
}

// Parser reads workbooks.
type Parser struct{ opt Options }

// NewParser constructs a Parser.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse reads the configured sheet from r.
func (p *Parser) Parse(r io.Reader, name string) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := p.opt.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	headers := csvparser.DedupeHeaders(append([]string(nil), rows[0]...))
	t := table.New(name, headers)
	for i, row := range rows[1:] {
		if len(row) > len(headers) {
			return nil, fmt.Errorf("sheet %q row %d: %d cells, header has %d", sheet, i+2, len(row), len(headers))
		}
		rec := make(records.Record, len(headers))
		for j, h := range headers {
			var val string
			if j < len(row) {
				val = row[j]
			}
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[h] = p.cell(val)
		}
		t.Append(rec)
	}
	return t, nil
}

func (p *Parser) cell(s string) any {
	if p.opt.InferTypes {
		return records.Infer(s)
	}
	if s == "" {
		return nil
	}
	return s
}
