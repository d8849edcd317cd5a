// Package csv parses delimited text into a table.Table using encoding/csv.
// The first row is the header. Any malformed row aborts the parse: a table
// with silently dropped rows would skew the per-country statistics computed
// downstream.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"socioprep/internal/table"
	"socioprep/pkg/records"
)

// Options configures the CSV parser. Zero values are usable.
type Options struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// TrimSpace trims surrounding whitespace from every cell.
	TrimSpace bool

	// InferTypes converts cells with records.Infer. When false every
	// non-empty cell stays a string and empty cells become nil.
	InferTypes bool
}

// Parser parses CSV input according to Options. Not safe for concurrent use
// of a single value across goroutines; construct one per input.
type Parser struct{ opt Options }

// NewParser constructs a Parser.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse reads the whole input into a table named name.
func (p *Parser) Parse(r io.Reader, name string) (*table.Table, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.ReuseRecord = true

	h, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv header: empty input")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	headers := DedupeHeaders(StripHeaderBOM(append([]string(nil), h...)))

	t := table.New(name, headers)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[headers[i]] = p.cell(val)
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

// DedupeHeaders renames repeated header cells to "name.1", "name.2", ...
// so that no column silently shadows another.
func DedupeHeaders(h []string) []string {
	seen := make(map[string]int, len(h))
	taken := make(map[string]bool, len(h))
	for _, c := range h {
		taken[c] = true
	}
	out := make([]string, len(h))
	for i, c := range h {
		n, dup := seen[c]
		seen[c] = n + 1
		if !dup {
			out[i] = c
			continue
		}
		cand := fmt.Sprintf("%s.%d", c, n)
		for taken[cand] {
			n++
			cand = fmt.Sprintf("%s.%d", c, n)
		}
		seen[c] = n + 1
		taken[cand] = true
		out[i] = cand
	}
	return out
}
