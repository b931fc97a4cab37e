// Package diff tracks per-cell deviations of edited rows from an authoritative
// source row set.
//
// The store keeps a sparse map holding only cells that differ from source.
// Entries that come to match source again are dropped, both when they are
// written and on every read, so a refreshed source can never leave behind an
// edit that equals server truth. Maps handed out by the store are never
// mutated afterwards; every write replaces the map it changes.
//
// A Store is not safe for concurrent use.
package diff

import (
	"github.com/coachgrid/tabledit/pkg/types"
)

// Store holds the diffs of one table against its source rows.
type Store struct {
	source   []types.Row
	index    map[string]int // row id -> position in source
	editable map[string]bool
	diffs    types.Diffs
}

// NewStore creates a store over source rows. Only editable column ids are
// ever diffed.
func NewStore(source []types.Row, editable []string) *Store {
	s := &Store{
		editable: make(map[string]bool, len(editable)),
		diffs:    types.Diffs{},
	}
	for _, id := range editable {
		s.editable[id] = true
	}
	s.SetSource(source)
	return s
}

// SetSource replaces the source snapshot. Pending diffs are reconciled
// against it on the next read.
func (s *Store) SetSource(rows []types.Row) {
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		index[r.ID] = i
	}
	s.source = rows
	s.index = index
}

// Source returns the current source snapshot.
func (s *Store) Source() []types.Row {
	return s.source
}

// SourceRow returns the source row with the given id.
func (s *Store) SourceRow(rowID string) (types.Row, bool) {
	i, ok := s.index[rowID]
	if !ok {
		return types.Row{}, false
	}
	return s.source[i], true
}

// IsEditable reports whether a column id is tracked.
func (s *Store) IsEditable(columnID string) bool {
	return s.editable[columnID]
}

// UpdateDiff records value for a cell. A value equal to source removes any
// existing entry for the cell, and the row entry once it has no cells left.
func (s *Store) UpdateDiff(rowID, columnID, value string) error {
	src, ok := s.SourceRow(rowID)
	if !ok {
		return types.ErrUnknownRow
	}
	if !s.editable[columnID] {
		return types.ErrColumnNotEditable
	}

	current := s.diffs[rowID]
	if src.Cells[columnID] == value {
		if _, tracked := current[columnID]; !tracked {
			return nil
		}
		next := withoutRow(s.diffs, rowID)
		if len(current) > 1 {
			cells := copyCells(current)
			delete(cells, columnID)
			next[rowID] = cells
		}
		s.diffs = next
		return nil
	}

	if old, tracked := current[columnID]; tracked && old == value {
		return nil
	}
	next := withoutRow(s.diffs, rowID)
	cells := copyCells(current)
	cells[columnID] = value
	next[rowID] = cells
	s.diffs = next
	return nil
}

// SetRowsViaDiffs replaces the whole diff map with the deltas of rows
// against source. Rows with no source counterpart are ignored.
func (s *Store) SetRowsViaDiffs(rows []types.Row) {
	s.diffs = Compute(rows, s.source, s.editable)
}

// ClearDiffs drops every pending diff.
func (s *Store) ClearDiffs() {
	s.diffs = types.Diffs{}
}

// Diffs returns the diffs reconciled against the current source.
func (s *Store) Diffs() types.Diffs {
	s.diffs = Cleanup(s.diffs, s.source, s.index)
	return s.diffs
}

// DirtyRowIDs returns the ids of rows with at least one diff, in source order.
func (s *Store) DirtyRowIDs() []string {
	diffs := s.Diffs()
	ids := make([]string, 0, len(diffs))
	for _, r := range s.source {
		if _, ok := diffs[r.ID]; ok {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// IsDirty reports whether a row has pending diffs.
func (s *Store) IsDirty(rowID string) bool {
	_, ok := s.Diffs()[rowID]
	return ok
}

// Restore installs previously captured diffs, for example from a journal.
// They are reconciled like any other diffs on the next read.
func (s *Store) Restore(d types.Diffs) {
	s.diffs = d.Clone()
}
