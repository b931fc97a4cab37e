package table

import (
	"context"
	"fmt"
	"strings"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/internal/normalize"
	"github.com/coachgrid/tabledit/internal/schema"
	"github.com/coachgrid/tabledit/internal/validation"
	"github.com/coachgrid/tabledit/pkg/types"
)

// CreateTable is the row state of a table entering new records. There is
// no source to diff against, so rows are held directly. The last row is
// always the ghost row and it is never saved.
type CreateTable[T any] struct {
	cols   []types.Column
	colIdx map[string]int
	rows   []types.Row
	opts   options[T]
	focus  focus

	gen      uint64
	state    validation.State
	stateGen uint64
}

// NewCreateTable creates an empty create table.
func NewCreateTable[T any](cols []types.Column, opts ...Option[T]) (*CreateTable[T], error) {
	if err := schema.ValidateColumns(cols); err != nil {
		return nil, err
	}
	t := &CreateTable[T]{
		cols:   cols,
		colIdx: columnIndex(cols),
		opts:   buildOptions(opts),
		gen:    1,
	}
	t.rows = []types.Row{types.NewGhostRow(cols)}
	return t, nil
}

// Columns returns the column definitions.
func (t *CreateTable[T]) Columns() []types.Column {
	return t.cols
}

// Rows returns every row including the trailing ghost row.
func (t *CreateTable[T]) Rows() []types.Row {
	return t.rows
}

// DataRows returns the rows without the ghost row.
func (t *CreateTable[T]) DataRows() []types.Row {
	return t.rows[:len(t.rows)-1]
}

// UpdateCell sets one cell. Writing a non-blank value into the ghost row
// promotes it to a real row with a fresh id and appends a new ghost row;
// promoted reports that this happened.
func (t *CreateTable[T]) UpdateCell(rowID, columnID string, value string) (promoted bool, err error) {
	ci, ok := t.colIdx[columnID]
	if !ok {
		return false, fmt.Errorf("%w: %s", types.ErrUnknownColumn, columnID)
	}
	col := t.cols[ci]
	if !col.IsEditable() {
		return false, fmt.Errorf("%w: %s", types.ErrColumnNotEditable, columnID)
	}
	ri := t.rowIndex(rowID)
	if ri < 0 {
		return false, fmt.Errorf("%w: %s", types.ErrUnknownRow, rowID)
	}

	value = cellValue(col, value, t.opts.normalizeOnEdit)
	old := t.rows[ri]
	if old.Cells[columnID] == value {
		return false, nil
	}
	if old.IsGhost() && strings.TrimSpace(value) == "" {
		return false, nil
	}

	row := old.Clone()
	row.Cells[columnID] = value
	rows := make([]types.Row, len(t.rows), len(t.rows)+1)
	copy(rows, t.rows)
	if row.IsGhost() {
		row.ID = t.opts.newID()
		rows = append(rows, types.NewGhostRow(t.cols))
		promoted = true
		if ref, ok := t.focus.get(); ok && ref.RowID == types.GhostRowID {
			ref.RowID = row.ID
			t.focus.set(ref)
		}
	}
	rows[ri] = row
	t.rows = rows
	t.touch()
	return promoted, nil
}

// SetRows replaces the content. Ghost rows in the input are dropped and a
// single ghost row is appended.
func (t *CreateTable[T]) SetRows(rows []types.Row) error {
	if err := schema.CheckRowIDs(rows, true); err != nil {
		return err
	}
	out := make([]types.Row, 0, len(rows)+1)
	for _, r := range rows {
		if r.IsGhost() {
			continue
		}
		out = append(out, r.Clone())
	}
	t.replace(out)
	return nil
}

// ImportData replaces the content with rows rendered from entities.
func (t *CreateTable[T]) ImportData(entities []T) error {
	out := make([]types.Row, 0, len(entities)+1)
	for i, e := range entities {
		cells, err := normalize.EntityToCells(e, t.cols, t.opts.mapper)
		if err != nil {
			return fmt.Errorf("import record %d: %w", i, err)
		}
		out = append(out, types.Row{ID: t.opts.newID(), Cells: cells})
	}
	t.replace(out)
	return nil
}

// HandlePaste applies a copied block anchored at a display position. Lines
// past the last data row create new rows, so pasting onto the ghost row
// appends the whole block.
func (t *CreateTable[T]) HandlePaste(text string, at types.GridPos) (PasteResult, error) {
	var res PasteResult
	grid := ParseClipboard(text)
	if len(grid) == 0 {
		return res, nil
	}

	data := t.DataRows()
	if at.Row < 0 || at.Row > len(data) {
		return res, fmt.Errorf("%w: row %d", types.ErrUnknownRow, at.Row)
	}
	if at.Column < 0 || at.Column >= len(t.cols) {
		return res, fmt.Errorf("%w: column %d", types.ErrUnknownColumn, at.Column)
	}

	out := make([]types.Row, len(data), len(data)+len(grid)+1)
	copy(out, data)
	for i, line := range grid {
		r := at.Row + i
		base := types.NewGhostRow(t.cols)
		if r < len(data) {
			base = data[r]
		}
		row, n, cut := pasteLine(base, line, t.cols, at.Column, func(c types.Column, v string) string {
			return cellValue(c, v, t.opts.normalizeOnEdit)
		})
		res.Truncated = res.Truncated || cut
		if n == 0 {
			continue
		}
		res.RowsAffected++
		res.CellsAffected += n
		if r < len(data) {
			out[r] = row
			continue
		}
		row.ID = t.opts.newID()
		out = append(out, row)
		res.RowsCreated++
	}

	if res.CellsAffected > 0 {
		t.replace(out)
	}
	return res, nil
}

// HandlePasteAtActive pastes at the focused cell.
func (t *CreateTable[T]) HandlePasteAtActive(text string) (PasteResult, error) {
	ref, ok := t.focus.get()
	if !ok {
		return PasteResult{}, ErrNoActiveCell
	}
	r := t.rowIndex(ref.RowID)
	if r < 0 {
		return PasteResult{}, fmt.Errorf("%w: %s", types.ErrUnknownRow, ref.RowID)
	}
	return t.HandlePaste(text, types.GridPos{Row: r, Column: t.colIdx[ref.ColumnID]})
}

// Reset drops every row, leaving only the ghost row.
func (t *CreateTable[T]) Reset() {
	t.replace(nil)
	t.focus.clear()
}

// HasUnsavedChanges reports whether any data row exists.
func (t *CreateTable[T]) HasUnsavedChanges() bool {
	return len(t.rows) > 1
}

// Validation returns the validation state of the data rows.
func (t *CreateTable[T]) Validation() validation.State {
	if t.opts.validator == nil {
		return validation.Valid()
	}
	if t.stateGen == t.gen {
		return t.state
	}
	t.state = t.opts.validator.ValidateRows(t.DataRows())
	t.stateGen = t.gen
	return t.state
}

// SetActiveCell focuses a cell, which may be in the ghost row.
func (t *CreateTable[T]) SetActiveCell(ref types.CellRef) error {
	if t.rowIndex(ref.RowID) < 0 {
		return fmt.Errorf("%w: %s", types.ErrUnknownRow, ref.RowID)
	}
	if _, ok := t.colIdx[ref.ColumnID]; !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownColumn, ref.ColumnID)
	}
	t.focus.set(ref)
	return nil
}

// ClearActiveCell drops the focus.
func (t *CreateTable[T]) ClearActiveCell() {
	t.focus.clear()
}

// ActiveCell returns the focused cell.
func (t *CreateTable[T]) ActiveCell() (types.CellRef, bool) {
	return t.focus.get()
}

// VisibleError returns the error of the focused cell, if it has one.
func (t *CreateTable[T]) VisibleError() (string, bool) {
	return t.focus.visibleError(t.Validation())
}

// CanSave reports whether there are rows and all of them are valid.
func (t *CreateTable[T]) CanSave() bool {
	return t.HasUnsavedChanges() && t.opts.validator != nil &&
		t.opts.validator.HasRowSchema() && t.Validation().IsValid
}

// SaveData maps every data row to an entity. A row schema is mandatory:
// without one SaveData fails with a configuration error instead of
// skipping typed validation. Invalid rows fail with a validation error.
func (t *CreateTable[T]) SaveData() ([]T, error) {
	changes, err := t.changes()
	if err != nil {
		return nil, err
	}
	out := make([]T, len(changes))
	for i, c := range changes {
		out[i] = c.Entity
	}
	return out, nil
}

// Save hands every data row to c and clears the table once c succeeds.
func (t *CreateTable[T]) Save(ctx context.Context, c Creator[T]) (int, error) {
	changes, err := t.changes()
	if err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, errNothingToSave()
	}
	if err := c.CreateRows(ctx, changes); err != nil {
		return 0, fmt.Errorf("table: create %d rows: %w", len(changes), err)
	}
	t.Reset()
	return len(changes), nil
}

func (t *CreateTable[T]) changes() ([]Change[T], error) {
	v := t.opts.validator
	if v == nil || !v.HasRowSchema() {
		return nil, tderrors.NewConfigError(tderrors.CodeMissingSchema,
			"create table has no row schema; refusing to save unvalidated rows")
	}
	if st := t.Validation(); !st.IsValid {
		return nil, errInvalidRows(st)
	}

	data := t.DataRows()
	out := make([]Change[T], 0, len(data))
	for _, r := range data {
		cells, err := normalize.NormalizeRow(r.Cells, t.cols)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", r.ID, err)
		}
		entity, err := v.Entity(cells)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", r.ID, err)
		}
		out = append(out, Change[T]{RowID: r.ID, Entity: entity, Cells: cells})
	}
	return out, nil
}

func (t *CreateTable[T]) replace(data []types.Row) {
	rows := make([]types.Row, len(data), len(data)+1)
	copy(rows, data)
	t.rows = append(rows, types.NewGhostRow(t.cols))
	if ref, ok := t.focus.get(); ok && t.rowIndex(ref.RowID) < 0 {
		t.focus.clear()
	}
	t.touch()
}

func (t *CreateTable[T]) rowIndex(id string) int {
	for i, r := range t.rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (t *CreateTable[T]) touch() {
	t.gen++
}
