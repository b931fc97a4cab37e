// Package normalize reduces raw cell text to the canonical string form of its
// column type and maps canonical rows to and from typed records.
//
// Empty or whitespace-only input always normalizes to "" for every column type.
// Every function here is pure: inputs are never modified.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/coachgrid/tabledit/pkg/types"
)

// Normalize returns the canonical form of raw for col. Only date columns can
// fail; number, boolean and select values that do not parse are returned
// trimmed so validation can report them.
func Normalize(raw string, col types.Column) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}

	switch col.Type {
	case types.ColumnNumber:
		return normalizeNumber(s), nil
	case types.ColumnBoolean:
		return normalizeBoolean(s, col.BooleanFormat), nil
	case types.ColumnDate:
		t, err := ParseDate(s, col.DateFormat)
		if err != nil {
			return "", err
		}
		return t.Format(isoLayout), nil
	case types.ColumnSelect:
		return matchOption(s, col.Options), nil
	case types.ColumnMultiSelect:
		return normalizeMulti(s, col.Options), nil
	default:
		return s, nil
	}
}

// NormalizeLenient is the live-typing variant of Normalize: values that
// cannot be parsed are passed through trimmed instead of failing.
func NormalizeLenient(raw string, col types.Column) string {
	s, err := Normalize(raw, col)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return s
}

// NormalizeRow normalizes every column of a row and returns a new cells map.
// Cells for ids not in cols are carried over unchanged. The first parse
// failure, in column order, is returned.
func NormalizeRow(cells map[string]string, cols []types.Column) (map[string]string, error) {
	out, errs := NormalizeRowErrors(cells, cols)
	for _, c := range cols {
		if err, ok := errs[c.ID]; ok {
			return nil, err
		}
	}
	return out, nil
}

// NormalizeRowErrors normalizes every column and reports parse failures per
// column. A failing cell keeps its trimmed raw value in the returned map.
func NormalizeRowErrors(cells map[string]string, cols []types.Column) (map[string]string, map[string]error) {
	out := make(map[string]string, len(cells)+len(cols))
	for k, v := range cells {
		out[k] = v
	}

	var errs map[string]error
	for _, c := range cols {
		v, err := Normalize(cells[c.ID], c)
		if err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[c.ID] = err
			v = strings.TrimSpace(cells[c.ID])
		}
		out[c.ID] = v
	}
	return out, errs
}

// NormalizeRowLenient normalizes every column, never failing.
func NormalizeRowLenient(cells map[string]string, cols []types.Column) map[string]string {
	out, _ := NormalizeRowErrors(cells, cols)
	return out
}

// normalizeNumber renders integers without a decimal point and strips
// trailing zeros from decimals. Unparseable or non-finite input is returned as is.
func normalizeNumber(s string) string {
	f, ok := parseNumber(s)
	if !ok {
		return s
	}
	return formatNumber(f)
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatNumber(f float64) string {
	if f == 0 {
		// collapses -0
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// matchOption returns the canonical option value matching s case-insensitively,
// by value first and then by label. Unknown input is returned unchanged.
func matchOption(s string, opts []types.Option) string {
	for _, o := range opts {
		if strings.EqualFold(o.Value, s) {
			return o.Value
		}
	}
	for _, o := range opts {
		if o.Label != "" && strings.EqualFold(o.Label, s) {
			return o.Value
		}
	}
	return s
}

func normalizeMulti(s string, opts []types.Option) string {
	parts := splitMulti(s)
	for i, p := range parts {
		parts[i] = matchOption(p, opts)
	}
	return strings.Join(parts, ", ")
}

// splitMulti splits a comma separated list, dropping empty items.
func splitMulti(s string) []string {
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func isOption(s string, opts []types.Option) bool {
	for _, o := range opts {
		if o.Value == s {
			return true
		}
	}
	return false
}

func optionValues(opts []types.Option) string {
	vals := make([]string, len(opts))
	for i, o := range opts {
		vals[i] = o.Value
	}
	return strings.Join(vals, ", ")
}

// FormatDisplay renders a canonical cell for humans: dates use the column's
// display pattern and select values their option label.
func FormatDisplay(value string, col types.Column) string {
	if value == "" {
		return ""
	}
	switch col.Type {
	case types.ColumnDate:
		if col.DateFormat == nil || col.DateFormat.Display == "" {
			return value
		}
		t, err := ParseDate(value, nil)
		if err != nil {
			return value
		}
		return t.Format(displayLayout(col.DateFormat.Display))
	case types.ColumnSelect:
		for _, o := range col.Options {
			if o.Value == value && o.Label != "" {
				return o.Label
			}
		}
	}
	return value
}
