// Package records defines the row type shared by every pipeline stage and the
// small set of scalar helpers (missing detection, text and numeric views)
// that the stages agree on.
//
// A Record maps a column name to a scalar: string, int64, float64, bool,
// time.Time, or nil. nil is the missing marker; a NaN float64 and the empty
// string are treated as missing as well so that values coming straight from
// a CSV cell and values produced by arithmetic behave the same way.
package records

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the text form used for time.Time values.
const DateLayout = "2006-01-02"

// Record is a single row keyed by column name.
type Record map[string]any

// Clone returns a shallow copy of r. Scalars are immutable, so a shallow copy
// is enough to make the result independent of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsMissing reports whether v is the missing marker.
func IsMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(t)
	case string:
		return t == ""
	}
	return false
}

// String renders v as text. Floats use the shortest representation that
// round-trips, so 2005.0 renders as "2005".
func String(v any) string {
	if IsMissing(v) {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(DateLayout)
	default:
		return ""
	}
}

// Float returns the numeric view of v. Numeric strings are parsed; anything
// else reports false.
func Float(v any) (float64, bool) {
	if IsMissing(v) {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Infer converts a raw cell into the narrowest scalar: nil for an empty cell
// or a NaN literal, int64 for integer text, float64 for other numeric text,
// and the original string otherwise.
func Infer(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) {
			return nil
		}
		return f
	}
	return s
}
