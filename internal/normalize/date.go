package normalize

import (
	"fmt"
	"strings"
	"time"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/pkg/types"
)

const isoLayout = "2006-01-02"

// DefaultDateInputs are accepted when a column configures no input patterns.
var DefaultDateInputs = []string{"YYYY-MM-DD", "MM/DD/YYYY", "DD-MM-YYYY", "YYYY/MM/DD"}

// ErrDateParse matches every date parse failure via errors.Is.
var ErrDateParse = tderrors.NewParseError(tderrors.CodeDateParse, "invalid date")

// inputLayout converts a token pattern to a lenient time layout that accepts
// one- or two-digit months and days.
var inputLayout = strings.NewReplacer("YYYY", "2006", "YY", "06", "MM", "1", "DD", "2").Replace

// displayLayout converts a token pattern to a zero-padded output layout.
var displayLayout = strings.NewReplacer("YYYY", "2006", "YY", "06", "MM", "01", "DD", "02").Replace

// ParseDate parses s using ISO, RFC 3339 and the configured input patterns,
// in that order. The result is at UTC midnight.
func ParseDate(s string, df *types.DateFormat) (time.Time, error) {
	s = strings.TrimSpace(s)

	inputs := DefaultDateInputs
	if df != nil && len(df.Inputs) > 0 {
		inputs = df.Inputs
	}

	layouts := make([]string, 0, len(inputs)+2)
	layouts = append(layouts, inputLayout("YYYY-MM-DD"), time.RFC3339)
	for _, in := range inputs {
		layouts = append(layouts, inputLayout(in))
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}

	err := tderrors.NewParseError(tderrors.CodeDateParse,
		fmt.Sprintf("invalid date %q: %s", s, describeFormats(df)))
	return time.Time{}, err.WithDetails(map[string]interface{}{
		"value":   s,
		"formats": inputs,
	})
}

// dateValue converts a canonical ISO date to the column's typed output.
func dateValue(t time.Time, df *types.DateFormat) any {
	out := types.DateOutputDate
	if df != nil && df.Output != "" {
		out = df.Output
	}
	switch out {
	case types.DateOutputISO:
		return t.Format(isoLayout)
	case types.DateOutputUnix:
		return t.Unix()
	default:
		return t
	}
}

// describeFormats lists accepted patterns for error messages.
func describeFormats(df *types.DateFormat) string {
	inputs := DefaultDateInputs
	if df != nil && len(df.Inputs) > 0 {
		inputs = df.Inputs
	}
	return fmt.Sprintf("expected one of %s", strings.Join(inputs, ", "))
}
