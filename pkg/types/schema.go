package types

// ColumnType identifies how a column's cells are parsed, rendered and validated.
type ColumnType string

const (
	ColumnText        ColumnType = "text"
	ColumnNumber      ColumnType = "number"
	ColumnBoolean     ColumnType = "boolean"
	ColumnDate        ColumnType = "date"
	ColumnSelect      ColumnType = "select"
	ColumnMultiSelect ColumnType = "multi-select"
	ColumnTextarea    ColumnType = "textarea"
	ColumnReadOnly    ColumnType = "read-only"
)

// Valid reports whether t is one of the known column types.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnText, ColumnNumber, ColumnBoolean, ColumnDate,
		ColumnSelect, ColumnMultiSelect, ColumnTextarea, ColumnReadOnly:
		return true
	}
	return false
}

// BooleanFormat controls how boolean cells are spelled.
type BooleanFormat string

const (
	BoolTrueFalse BooleanFormat = "true-false"
	BoolYesNo     BooleanFormat = "yes-no"
	BoolOneZero   BooleanFormat = "1-0"
	BoolYN        BooleanFormat = "y-n"
	// BoolAuto accepts every known spelling and renders as true/false.
	BoolAuto BooleanFormat = "auto"
)

// DateOutput selects the typed representation of a date cell.
type DateOutput string

const (
	DateOutputDate DateOutput = "date" // time.Time at UTC midnight
	DateOutputISO  DateOutput = "iso"  // "YYYY-MM-DD" string
	DateOutputUnix DateOutput = "unix" // seconds since epoch, int64
)

// DateFormat configures date parsing and display.
type DateFormat struct {
	// Inputs lists accepted input patterns using YYYY, YY, MM and DD tokens,
	// e.g. "MM/DD/YYYY". ISO YYYY-MM-DD is always accepted.
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Output is the typed representation handed to row schemas.
	Output DateOutput `json:"output,omitempty" yaml:"output,omitempty"`

	// Display is the pattern used when rendering for humans.
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
}

// Option is one allowed value of a select or multi-select column.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Column describes one table column.
type Column struct {
	// ID is the stable cell key, unique within a table.
	ID string `json:"id" yaml:"id"`

	// Label is the human header.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	Type ColumnType `json:"type" yaml:"type"`

	// Editable defaults to true when unset.
	Editable *bool `json:"editable,omitempty" yaml:"editable,omitempty"`

	// Derived columns are recomputed from other cells and never diffed.
	Derived bool `json:"derived,omitempty" yaml:"derived,omitempty"`

	// Min and Max bound number columns.
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`

	Options       []Option      `json:"options,omitempty" yaml:"options,omitempty"`
	BooleanFormat BooleanFormat `json:"boolean_format,omitempty" yaml:"boolean_format,omitempty"`
	DateFormat    *DateFormat   `json:"date_format,omitempty" yaml:"date_format,omitempty"`

	// Validate is a go-playground/validator tag applied to the typed value,
	// e.g. "required,min=1".
	Validate string `json:"validate,omitempty" yaml:"validate,omitempty"`
}

// IsEditable reports whether users may change the column's cells.
func (c Column) IsEditable() bool {
	if c.Derived || c.Type == ColumnReadOnly {
		return false
	}
	return c.Editable == nil || *c.Editable
}

// HasSchema reports whether the column carries any value constraint.
func (c Column) HasSchema() bool {
	return c.Validate != "" || c.Min != nil || c.Max != nil
}

// EditableIDs returns the ids of the editable, non-derived columns.
func EditableIDs(cols []Column) []string {
	ids := make([]string, 0, len(cols))
	for _, c := range cols {
		if c.IsEditable() {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// ColumnByID returns the column with the given id.
func ColumnByID(cols []Column, id string) (Column, bool) {
	for _, c := range cols {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}
