package table

import (
	"fmt"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/internal/normalize"
	"github.com/coachgrid/tabledit/internal/validation"
	"github.com/coachgrid/tabledit/pkg/types"
)

// focus tracks the active cell. Errors are shown for that cell only.
type focus struct {
	ref    types.CellRef
	active bool
}

func (f *focus) set(ref types.CellRef) {
	f.ref, f.active = ref, true
}

func (f *focus) clear() {
	*f = focus{}
}

func (f *focus) get() (types.CellRef, bool) {
	return f.ref, f.active
}

func (f *focus) visibleError(st validation.State) (string, bool) {
	if !f.active {
		return "", false
	}
	return st.ErrorFor(f.ref.RowID, f.ref.ColumnID)
}

func columnIndex(cols []types.Column) map[string]int {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c.ID] = i
	}
	return idx
}

// cellValue is the value stored for a typed or pasted cell.
func cellValue(col types.Column, raw string, normalizeOnEdit bool) string {
	if normalizeOnEdit {
		return normalize.NormalizeLenient(raw, col)
	}
	return raw
}

// pasteLine writes one pasted line into a copy of row starting at column
// start, storing value(col, raw) for each cell. It returns the number of
// cells written and whether the line ran past the last column.
func pasteLine(row types.Row, line []string, cols []types.Column, start int, value func(types.Column, string) string) (types.Row, int, bool) {
	out := row.Clone()
	n := 0
	for j, v := range line {
		c := start + j
		if c >= len(cols) {
			return out, n, true
		}
		col := cols[c]
		if !col.IsEditable() {
			continue
		}
		out.Cells[col.ID] = value(col, v)
		n++
	}
	return out, n, false
}

// toEntity maps a row through the validator's pipeline when there is one.
func toEntity[T any](cells map[string]string, cols []types.Column, o options[T]) (T, error) {
	if o.validator != nil {
		return o.validator.Entity(cells)
	}
	return normalize.RowToEntity(cells, cols, o.mapper)
}

func errNothingToSave() error {
	return tderrors.NewValidationError(tderrors.CodeNothingToSave, "no changes to save")
}

func errInvalidRows(st validation.State) error {
	return tderrors.NewValidationError(tderrors.CodeInvalidRows,
		fmt.Sprintf("%d rows have validation errors", len(st.Errors))).
		WithDetails(map[string]interface{}{"errors": st.Errors})
}
