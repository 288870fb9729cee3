// Package compare decides whether two field-sets differ on the fields a
// policy watches. Numbers are compared with an absolute tolerance so that
// values which round-trip through spreadsheets and JSON do not churn.
package compare

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// FieldChange describes one watched field whose value differs.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// Equivalent reports whether a and b agree on every watched field.
// Fields outside watched are ignored; an empty watched set is always equivalent.
func Equivalent(a, b records.Fields, watched []string) bool {
	for _, name := range watched {
		if !ValuesEqual(a[name], b[name]) {
			return false
		}
	}
	return true
}

// Diff returns the watched fields on which a and b disagree, in watched order.
func Diff(a, b records.Fields, watched []string) []FieldChange {
	var changes []FieldChange
	for _, name := range watched {
		if !ValuesEqual(a[name], b[name]) {
			changes = append(changes, FieldChange{Field: name, Old: a[name], New: b[name]})
		}
	}
	return changes
}

// ValuesEqual compares two field values. When both parse as finite numbers
// they are equal within constants.NumericTolerance; otherwise their canonical
// string forms must match exactly.
func ValuesEqual(a, b any) bool {
	fa, okA := Number(a)
	fb, okB := Number(b)
	if okA && okB {
		return math.Abs(fa-fb) <= constants.NumericTolerance
	}
	return String(a) == String(b)
}

// Number returns v as a finite float64 if it is numeric or a string holding
// a number. NaN and infinities are not numbers.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// String renders a field value in the canonical form used for exact comparison.
func String(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case json.Number:
		return s.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
