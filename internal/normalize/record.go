package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/pkg/types"
)

// ToRecord converts canonical cells to typed values. Conversion failures are
// reported per column as human messages and the failing column is left nil.
func ToRecord(cells map[string]string, cols []types.Column) (types.Record, map[string]string) {
	rec := make(types.Record, len(cols))
	var failures map[string]string
	fail := func(id, msg string) {
		if failures == nil {
			failures = make(map[string]string)
		}
		failures[id] = msg
		rec[id] = nil
	}

	for _, c := range cols {
		v := cells[c.ID]
		if v == "" {
			rec[c.ID] = nil
			continue
		}

		switch c.Type {
		case types.ColumnNumber:
			f, ok := parseNumber(v)
			if !ok {
				fail(c.ID, "must be a number")
				continue
			}
			rec[c.ID] = f
		case types.ColumnBoolean:
			b, ok := ParseBool(v)
			if !ok {
				fail(c.ID, fmt.Sprintf("must be %s or %s",
					FormatBool(true, c.BooleanFormat), FormatBool(false, c.BooleanFormat)))
				continue
			}
			rec[c.ID] = b
		case types.ColumnDate:
			t, err := ParseDate(v, c.DateFormat)
			if err != nil {
				fail(c.ID, "must be a date, "+describeFormats(c.DateFormat))
				continue
			}
			rec[c.ID] = dateValue(t, c.DateFormat)
		case types.ColumnSelect:
			if len(c.Options) > 0 && !isOption(v, c.Options) {
				fail(c.ID, "must be one of "+optionValues(c.Options))
				continue
			}
			rec[c.ID] = v
		case types.ColumnMultiSelect:
			items := splitMulti(v)
			bad := false
			for _, it := range items {
				if len(c.Options) > 0 && !isOption(it, c.Options) {
					bad = true
					break
				}
			}
			if bad {
				fail(c.ID, "items must be among "+optionValues(c.Options))
				continue
			}
			rec[c.ID] = items
		default:
			rec[c.ID] = v
		}
	}
	return rec, failures
}

// FromRecord renders typed values back to canonical cells. It accepts the
// shapes produced by ToRecord as well as JSON-decoded values.
func FromRecord(rec types.Record, cols []types.Column) (map[string]string, error) {
	cells := make(map[string]string, len(cols))
	for _, c := range cols {
		v, ok := rec[c.ID]
		if !ok || v == nil {
			cells[c.ID] = ""
			continue
		}
		s, err := renderValue(v, c)
		if err != nil {
			return nil, err
		}
		cells[c.ID] = s
	}
	return cells, nil
}

func renderValue(v any, c types.Column) (string, error) {
	switch c.Type {
	case types.ColumnNumber:
		switch n := v.(type) {
		case float64:
			return formatNumber(n), nil
		case float32:
			return formatNumber(float64(n)), nil
		case int:
			return strconv.Itoa(n), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		case int32:
			return strconv.FormatInt(int64(n), 10), nil
		case json.Number:
			return normalizeNumber(n.String()), nil
		case string:
			return normalizeNumber(strings.TrimSpace(n)), nil
		}
	case types.ColumnBoolean:
		switch b := v.(type) {
		case bool:
			return FormatBool(b, resolveFormat(c.BooleanFormat)), nil
		case string:
			return normalizeBoolean(strings.TrimSpace(b), c.BooleanFormat), nil
		}
	case types.ColumnDate:
		switch d := v.(type) {
		case time.Time:
			return d.UTC().Format(isoLayout), nil
		case string:
			return Normalize(d, c)
		case int64:
			return time.Unix(d, 0).UTC().Format(isoLayout), nil
		case json.Number:
			secs, err := d.Int64()
			if err != nil {
				return Normalize(d.String(), c)
			}
			return time.Unix(secs, 0).UTC().Format(isoLayout), nil
		case float64:
			return time.Unix(int64(d), 0).UTC().Format(isoLayout), nil
		}
	case types.ColumnMultiSelect:
		switch items := v.(type) {
		case []string:
			return Normalize(strings.Join(items, ","), c)
		case []any:
			parts := make([]string, 0, len(items))
			for _, it := range items {
				parts = append(parts, fmt.Sprint(it))
			}
			return Normalize(strings.Join(parts, ","), c)
		case string:
			return Normalize(items, c)
		}
	default:
		switch s := v.(type) {
		case string:
			return Normalize(s, c)
		case fmt.Stringer:
			return Normalize(s.String(), c)
		default:
			return Normalize(fmt.Sprint(s), c)
		}
	}
	return "", tderrors.NewParseError(tderrors.CodeTypeMismatch,
		fmt.Sprintf("column %q: cannot render %T as %s", c.ID, v, c.Type))
}

func resolveFormat(f types.BooleanFormat) types.BooleanFormat {
	if f == "" || f == types.BoolAuto {
		return types.BoolTrueFalse
	}
	return f
}
