package types

import "errors"

// Row and column lookup errors.
var (
	// ErrUnknownRow is returned when a row id is not part of the table.
	ErrUnknownRow = errors.New("unknown row")

	// ErrUnknownColumn is returned when a column id is not part of the table.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrColumnNotEditable is returned when a derived or read-only cell is edited.
	ErrColumnNotEditable = errors.New("column is not editable")
)
