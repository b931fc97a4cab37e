package normalize

import (
	"strings"

	"github.com/coachgrid/tabledit/pkg/types"
)

type boolSpelling struct {
	t, f string
}

var boolSpellings = map[types.BooleanFormat]boolSpelling{
	types.BoolTrueFalse: {"true", "false"},
	types.BoolYesNo:     {"yes", "no"},
	types.BoolOneZero:   {"1", "0"},
	types.BoolYN:        {"y", "n"},
}

// spellingOf maps every accepted lowercase spelling to its value and family.
var spellingOf = map[string]struct {
	value  bool
	format types.BooleanFormat
}{
	"true":  {true, types.BoolTrueFalse},
	"false": {false, types.BoolTrueFalse},
	"yes":   {true, types.BoolYesNo},
	"no":    {false, types.BoolYesNo},
	"1":     {true, types.BoolOneZero},
	"0":     {false, types.BoolOneZero},
	"y":     {true, types.BoolYN},
	"n":     {false, types.BoolYN},
}

// ParseBool reads any known boolean spelling, case-insensitively.
func ParseBool(s string) (bool, bool) {
	sp, ok := spellingOf[strings.ToLower(strings.TrimSpace(s))]
	return sp.value, ok
}

// FormatBool renders b in the given format. auto renders as true/false.
func FormatBool(b bool, format types.BooleanFormat) string {
	sp, ok := boolSpellings[format]
	if !ok {
		sp = boolSpellings[types.BoolTrueFalse]
	}
	if b {
		return sp.t
	}
	return sp.f
}

// normalizeBoolean re-renders s in the column's format. With auto the
// spelling family of the input is kept, so "Yes" becomes "yes".
func normalizeBoolean(s string, format types.BooleanFormat) string {
	sp, ok := spellingOf[strings.ToLower(s)]
	if !ok {
		return s
	}
	if format == "" {
		format = types.BoolTrueFalse
	}
	if format == types.BoolAuto {
		format = sp.format
	}
	return FormatBool(sp.value, format)
}
