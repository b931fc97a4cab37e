package table

import (
	"context"
	"fmt"

	"github.com/coachgrid/tabledit/internal/diff"
	"github.com/coachgrid/tabledit/internal/normalize"
	"github.com/coachgrid/tabledit/internal/schema"
	"github.com/coachgrid/tabledit/internal/validation"
	"github.com/coachgrid/tabledit/pkg/types"
)

// EditTable is the row state of a table editing existing records.
//
// Displayed rows are a pure function of the source rows and the diff store;
// cell edits and pastes only ever write diffs.
type EditTable[T any] struct {
	cols   []types.Column
	colIdx map[string]int
	store  *diff.Store
	opts   options[T]
	focus  focus

	sourceFP uint64

	// gen advances on every state change; memos are valid while their
	// generation matches.
	gen      uint64
	rows     []types.Row
	rowsGen  uint64
	rowIdx   map[string]int
	state    validation.State
	stateGen uint64
}

// NewEditTable creates an edit table over source rows.
func NewEditTable[T any](cols []types.Column, source []types.Row, opts ...Option[T]) (*EditTable[T], error) {
	if err := schema.ValidateColumns(cols); err != nil {
		return nil, err
	}
	if err := schema.CheckRowIDs(source, false); err != nil {
		return nil, err
	}

	t := &EditTable[T]{
		cols:     cols,
		colIdx:   columnIndex(cols),
		store:    diff.NewStore(source, types.EditableIDs(cols)),
		opts:     buildOptions(opts),
		sourceFP: diff.Fingerprint(source),
		gen:      1,
	}
	return t, nil
}

// Columns returns the column definitions.
func (t *EditTable[T]) Columns() []types.Column {
	return t.cols
}

// SetSource installs freshly fetched source rows. Diffs that now match the
// source are dropped. A row set identical to the current one is ignored.
func (t *EditTable[T]) SetSource(rows []types.Row) error {
	if err := schema.CheckRowIDs(rows, false); err != nil {
		return err
	}
	fp := diff.Fingerprint(rows)
	if fp == t.sourceFP && len(rows) == len(t.store.Source()) {
		return nil
	}
	t.store.SetSource(rows)
	t.sourceFP = fp
	t.touch()
	if ref, ok := t.focus.get(); ok {
		if _, exists := t.store.SourceRow(ref.RowID); !exists {
			t.focus.clear()
		}
	}
	return nil
}

// Rows returns the displayed rows: source rows in order with diffs
// overlaid and derived cells recomputed.
func (t *EditTable[T]) Rows() []types.Row {
	if t.rows != nil && t.rowsGen == t.gen {
		return t.rows
	}

	diffs := t.store.Diffs()
	src := t.store.Source()
	rows := make([]types.Row, len(src))
	idx := make(map[string]int, len(src))
	for i, s := range src {
		d, dirty := diffs[s.ID]
		r := s
		if dirty || t.opts.derive != nil {
			r = s.Clone()
			for k, v := range d {
				r.Cells[k] = v
			}
		}
		if t.opts.derive != nil {
			for k, v := range t.opts.derive(r.Cells) {
				r.Cells[k] = v
			}
		}
		rows[i] = r
		idx[s.ID] = i
	}

	t.rows, t.rowIdx, t.rowsGen = rows, idx, t.gen
	return rows
}

// Row returns one displayed row.
func (t *EditTable[T]) Row(rowID string) (types.Row, bool) {
	rows := t.Rows()
	i, ok := t.rowIdx[rowID]
	if !ok {
		return types.Row{}, false
	}
	return rows[i], true
}

// UpdateCell sets one cell. Edit mode never creates rows: unknown rows and
// non-editable columns are rejected.
func (t *EditTable[T]) UpdateCell(rowID, columnID, value string) error {
	i, ok := t.colIdx[columnID]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownColumn, columnID)
	}
	value = t.editValue(rowID, t.cols[i], value)
	if err := t.store.UpdateDiff(rowID, columnID, value); err != nil {
		return fmt.Errorf("%w: %s/%s", err, rowID, columnID)
	}
	t.touch()
	return nil
}

// editValue is the value stored for an edited cell. With normalize-on-edit
// a value equal to the source cell after normalization keeps the source
// spelling, so typing a cell's own value back never leaves a diff.
func (t *EditTable[T]) editValue(rowID string, col types.Column, raw string) string {
	if !t.opts.normalizeOnEdit {
		return raw
	}
	v := normalize.NormalizeLenient(raw, col)
	if src, ok := t.store.SourceRow(rowID); ok {
		if cur := src.Cells[col.ID]; normalize.NormalizeLenient(cur, col) == v {
			return cur
		}
	}
	return v
}

// HandlePaste applies a copied block anchored at a display position.
// Values land on existing rows only; lines past the last row are dropped
// and reported as truncated. Non-editable columns inside the block are skipped.
func (t *EditTable[T]) HandlePaste(text string, at types.GridPos) (PasteResult, error) {
	var res PasteResult
	grid := ParseClipboard(text)
	if len(grid) == 0 {
		return res, nil
	}

	rows := t.Rows()
	if at.Row < 0 || at.Row >= len(rows) {
		return res, fmt.Errorf("%w: row %d", types.ErrUnknownRow, at.Row)
	}
	if at.Column < 0 || at.Column >= len(t.cols) {
		return res, fmt.Errorf("%w: column %d", types.ErrUnknownColumn, at.Column)
	}

	merged := make([]types.Row, len(rows))
	copy(merged, rows)
	for i, line := range grid {
		r := at.Row + i
		if r >= len(rows) {
			res.Truncated = true
			break
		}
		rowID := rows[r].ID
		row, n, cut := pasteLine(rows[r], line, t.cols, at.Column, func(c types.Column, v string) string {
			return t.editValue(rowID, c, v)
		})
		res.Truncated = res.Truncated || cut
		if n > 0 {
			merged[r] = row
			res.RowsAffected++
			res.CellsAffected += n
		}
	}

	if res.CellsAffected > 0 {
		t.store.SetRowsViaDiffs(merged)
		t.touch()
	}
	return res, nil
}

// HandlePasteAtActive pastes at the focused cell.
func (t *EditTable[T]) HandlePasteAtActive(text string) (PasteResult, error) {
	ref, ok := t.focus.get()
	if !ok {
		return PasteResult{}, ErrNoActiveCell
	}
	t.Rows()
	r, ok := t.rowIdx[ref.RowID]
	if !ok {
		return PasteResult{}, fmt.Errorf("%w: %s", types.ErrUnknownRow, ref.RowID)
	}
	return t.HandlePaste(text, types.GridPos{Row: r, Column: t.colIdx[ref.ColumnID]})
}

// DiscardChanges drops every diff and the focused cell.
func (t *EditTable[T]) DiscardChanges() {
	t.store.ClearDiffs()
	t.focus.clear()
	t.touch()
}

// Reset returns the table to its source state. For an edit table this is
// the same as DiscardChanges.
func (t *EditTable[T]) Reset() {
	t.DiscardChanges()
}

// Diffs returns the current diffs.
func (t *EditTable[T]) Diffs() types.Diffs {
	return t.store.Diffs()
}

// RestoreDiffs installs previously captured diffs.
func (t *EditTable[T]) RestoreDiffs(d types.Diffs) {
	t.store.Restore(d)
	t.touch()
}

// DirtyRowIDs returns the ids of changed rows in display order.
func (t *EditTable[T]) DirtyRowIDs() []string {
	return t.store.DirtyRowIDs()
}

// HasUnsavedChanges reports whether any row differs from source.
func (t *EditTable[T]) HasUnsavedChanges() bool {
	return len(t.store.Diffs()) > 0
}

// GetDirtyRows returns the displayed rows that have at least one changed cell.
func (t *EditTable[T]) GetDirtyRows() []types.Row {
	rows := t.Rows()
	ids := t.store.DirtyRowIDs()
	out := make([]types.Row, 0, len(ids))
	for _, id := range ids {
		out = append(out, rows[t.rowIdx[id]])
	}
	return out
}

// Validation returns the validation state of every displayed row.
func (t *EditTable[T]) Validation() validation.State {
	if t.opts.validator == nil {
		return validation.Valid()
	}
	if t.stateGen == t.gen {
		return t.state
	}
	t.state = t.opts.validator.ValidateRows(t.Rows())
	t.stateGen = t.gen
	return t.state
}

// SetActiveCell focuses a cell. Only the focused cell shows its error.
func (t *EditTable[T]) SetActiveCell(ref types.CellRef) error {
	if _, ok := t.store.SourceRow(ref.RowID); !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownRow, ref.RowID)
	}
	if _, ok := t.colIdx[ref.ColumnID]; !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownColumn, ref.ColumnID)
	}
	t.focus.set(ref)
	return nil
}

// ClearActiveCell drops the focus.
func (t *EditTable[T]) ClearActiveCell() {
	t.focus.clear()
}

// ActiveCell returns the focused cell.
func (t *EditTable[T]) ActiveCell() (types.CellRef, bool) {
	return t.focus.get()
}

// VisibleError returns the error of the focused cell, if it has one.
func (t *EditTable[T]) VisibleError() (string, bool) {
	return t.focus.visibleError(t.Validation())
}

// CanSave reports whether there is something to save and every row is valid.
func (t *EditTable[T]) CanSave() bool {
	return t.HasUnsavedChanges() && t.Validation().IsValid
}

// Version identifies the displayed content. It changes whenever a
// displayed cell changes.
func (t *EditTable[T]) Version() uint64 {
	return diff.Fingerprint(t.Rows())
}

// Save hands the dirty rows to u. It refuses to run when nothing changed
// or any row is invalid, and does not change table state: the caller
// refreshes the source afterwards, which clears the saved diffs.
func (t *EditTable[T]) Save(ctx context.Context, u Updater[T]) (int, error) {
	if !t.HasUnsavedChanges() {
		return 0, errNothingToSave()
	}
	if st := t.Validation(); !st.IsValid {
		return 0, errInvalidRows(st)
	}

	diffs := t.store.Diffs()
	dirty := t.GetDirtyRows()
	changes := make([]Change[T], 0, len(dirty))
	for _, r := range dirty {
		entity, err := toEntity(r.Cells, t.cols, t.opts)
		if err != nil {
			return 0, fmt.Errorf("row %s: %w", r.ID, err)
		}
		changes = append(changes, Change[T]{
			RowID:  r.ID,
			Entity: entity,
			Cells:  normalizedCells(diffs[r.ID], t.cols, t.colIdx),
		})
	}

	if err := u.UpdateRows(ctx, changes); err != nil {
		return 0, fmt.Errorf("table: save %d rows: %w", len(changes), err)
	}
	return len(changes), nil
}

func (t *EditTable[T]) touch() {
	t.gen++
}

// normalizedCells strictly normalizes the given cells. Save has already
// mapped the full row, so parse failures cannot occur here.
func normalizedCells(cells map[string]string, cols []types.Column, idx map[string]int) map[string]string {
	out := make(map[string]string, len(cells))
	for id, v := range cells {
		out[id] = normalize.NormalizeLenient(v, cols[idx[id]])
	}
	return out
}
