package validation

import "github.com/coachgrid/tabledit/pkg/types"

// State is the validation outcome for a set of rows. It is derived from row
// contents only and is never mutated after it is returned.
type State struct {
	IsValid bool `json:"is_valid"`

	// Errors maps row id to column id to message. Errors not tied to a
	// column are stored under types.RootErrorKey.
	Errors map[string]map[string]string `json:"errors"`
}

// Valid is the state of a table with no errors.
func Valid() State {
	return State{IsValid: true, Errors: map[string]map[string]string{}}
}

// ErrorFor returns the message for one cell.
func (s State) ErrorFor(rowID, columnID string) (string, bool) {
	msg, ok := s.Errors[rowID][columnID]
	return msg, ok
}

// RowError returns the row-level message of a row, if any.
func (s State) RowError(rowID string) (string, bool) {
	return s.ErrorFor(rowID, types.RootErrorKey)
}

// Count returns the total number of messages.
func (s State) Count() int {
	n := 0
	for _, cells := range s.Errors {
		n += len(cells)
	}
	return n
}
