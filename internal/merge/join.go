package merge

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"socioprep/internal/table"
	"socioprep/pkg/records"
)

// Suffixes applied to overlapping non-key columns.
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// Join names the right-hand table of one merge step and the column both
// sides are matched on.
type Join struct {
	Right *table.Table
	On    string
}

// JoinStats describes one LeftJoin.
type JoinStats struct {
	Right     string `json:"right"`
	LeftRows  int    `json:"left_rows"`
	Rows      int    `json:"rows"`
	Matched   int    `json:"matched"`
	Unmatched int    `json:"unmatched"`
	// Duplicate counts right-side keys that occur more than once.
	Duplicate int `json:"duplicate_keys"`
}

// FanOut is the number of rows the join added beyond the left row count.
func (s JoinStats) FanOut() int { return s.Rows - s.LeftRows }

// index maps the xxh3 hash of a key's text to the right rows carrying it.
// Rows sharing a hash but not the key are kept in the same bucket and told
// apart on lookup.
type index struct {
	buckets map[uint64][]int
	keys    []string
}

func buildIndex(t *table.Table, on string) (*index, int) {
	ix := &index{buckets: make(map[uint64][]int, len(t.Rows)), keys: make([]string, len(t.Rows))}
	seen := make(map[string]int, len(t.Rows))
	dup := 0
	for i, r := range t.Rows {
		v := r[on]
		if records.IsMissing(v) {
			continue
		}
		k := records.String(v)
		ix.keys[i] = k
		h := xxh3.HashString(k)
		ix.buckets[h] = append(ix.buckets[h], i)
		if seen[k]++; seen[k] == 2 {
			dup++
		}
	}
	return ix, dup
}

func (ix *index) lookup(k string) []int {
	var out []int
	for _, i := range ix.buckets[xxh3.HashString(k)] {
		if ix.keys[i] == k {
			out = append(out, i)
		}
	}
	return out
}

// LeftJoin keeps every row of left. A left row is repeated once per matching
// right row; unmatched rows get missing right-side values. Missing keys never
// match. Non-key columns present on both sides are suffixed _x and _y.
func LeftJoin(left, right *table.Table, on string) (*table.Table, JoinStats, error) {
	st := JoinStats{Right: right.Name, LeftRows: left.Len()}
	if err := left.Require("join", on); err != nil {
		return nil, st, err
	}
	if err := right.Require("join", on); err != nil {
		return nil, st, err
	}

	overlap := map[string]bool{}
	for _, c := range right.Columns {
		if c != on && left.Has(c) {
			overlap[c] = true
		}
	}
	leftName := func(c string) string {
		if overlap[c] {
			return c + LeftSuffix
		}
		return c
	}
	rightName := func(c string) string {
		if overlap[c] {
			return c + RightSuffix
		}
		return c
	}

	cols := make([]string, 0, len(left.Columns)+len(right.Columns)-1)
	for _, c := range left.Columns {
		cols = append(cols, leftName(c))
	}
	var rightCols []string
	for _, c := range right.Columns {
		if c == on {
			continue
		}
		rightCols = append(rightCols, c)
		cols = append(cols, rightName(c))
	}
	out := table.New(left.Name, cols)
	if err := uniqueColumns(out); err != nil {
		return nil, st, err
	}

	ix, dup := buildIndex(right, on)
	st.Duplicate = dup

	out.Rows = make([]records.Record, 0, left.Len())
	for _, lr := range left.Rows {
		base := make(records.Record, len(cols))
		for _, c := range left.Columns {
			base[leftName(c)] = lr[c]
		}

		var matches []int
		if v := lr[on]; !records.IsMissing(v) {
			matches = ix.lookup(records.String(v))
		}
		if len(matches) == 0 {
			st.Unmatched++
			for _, c := range rightCols {
				base[rightName(c)] = nil
			}
			out.Rows = append(out.Rows, base)
			continue
		}

		st.Matched++
		for n, ri := range matches {
			row := base
			if n < len(matches)-1 {
				row = base.Clone()
			}
			rr := right.Rows[ri]
			for _, c := range rightCols {
				row[rightName(c)] = rr[c]
			}
			out.Rows = append(out.Rows, row)
		}
	}
	st.Rows = out.Len()
	return out, st, nil
}

func uniqueColumns(t *table.Table) error {
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c] {
			return fmt.Errorf("join into %q: column %q would appear twice", t.Name, c)
		}
		seen[c] = true
	}
	return nil
}

// Merge left-joins each join's right table onto primary, in order.
func Merge(primary *table.Table, joins []Join) (*table.Table, []JoinStats, error) {
	acc := primary
	stats := make([]JoinStats, 0, len(joins))
	for _, j := range joins {
		next, st, err := LeftJoin(acc, j.Right, j.On)
		if err != nil {
			return nil, stats, fmt.Errorf("merge %q into %q on %q: %w", j.Right.Name, primary.Name, j.On, err)
		}
		stats = append(stats, st)
		acc = next
	}
	if acc == primary {
		acc = primary.Clone()
	}
	return acc, stats, nil
}
