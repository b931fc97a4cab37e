// Package session hosts editable tables for remote clients. A session owns
// one edit or create table over a defined table, serializes every operation
// on it and, in edit mode, journals operations so unsaved work survives a
// restart.
package session

import (
	"sync"
	"time"

	"github.com/coachgrid/tabledit/internal/journal"
	"github.com/coachgrid/tabledit/internal/schema"
	"github.com/coachgrid/tabledit/internal/table"
	"github.com/coachgrid/tabledit/internal/validation"
	"github.com/coachgrid/tabledit/pkg/types"
)

// Mode is the kind of table a session holds.
type Mode string

const (
	ModeEdit   Mode = "edit"
	ModeCreate Mode = "create"
)

// Session is one open table. Exactly one of edit and create is set.
type Session struct {
	ID    string
	Table string
	Mode  Mode

	mu       sync.Mutex
	def      *schema.Definition
	edit     *table.EditTable[types.Record]
	create   *table.CreateTable[types.Record]
	journal  *journal.Journal
	lastUsed time.Time
	closed   bool
	counted  bool
}

// View is the client-facing state of a session.
type View struct {
	ID                string           `json:"id"`
	Table             string           `json:"table"`
	Mode              Mode             `json:"mode"`
	Columns           []types.Column   `json:"columns"`
	Rows              []types.Row      `json:"rows"`
	Validation        validation.State `json:"validation"`
	DirtyRowIDs       []string         `json:"dirty_row_ids,omitempty"`
	HasUnsavedChanges bool             `json:"has_unsaved_changes"`
	CanSave           bool             `json:"can_save"`
	ActiveCell        *types.CellRef   `json:"active_cell,omitempty"`
	VisibleError      string           `json:"visible_error,omitempty"`
	Version           uint64           `json:"version,omitempty"`
}

// view renders the session. The caller holds s.mu.
func (s *Session) view() *View {
	v := &View{ID: s.ID, Table: s.Table, Mode: s.Mode, Columns: s.def.Columns}
	var (
		ref    types.CellRef
		active bool
	)
	switch s.Mode {
	case ModeEdit:
		v.Rows = s.edit.Rows()
		v.Validation = s.edit.Validation()
		v.DirtyRowIDs = s.edit.DirtyRowIDs()
		v.HasUnsavedChanges = s.edit.HasUnsavedChanges()
		v.CanSave = s.edit.CanSave()
		v.VisibleError, _ = s.edit.VisibleError()
		v.Version = s.edit.Version()
		ref, active = s.edit.ActiveCell()
	case ModeCreate:
		v.Rows = s.create.Rows()
		v.Validation = s.create.Validation()
		v.HasUnsavedChanges = s.create.HasUnsavedChanges()
		v.CanSave = s.create.CanSave()
		v.VisibleError, _ = s.create.VisibleError()
		ref, active = s.create.ActiveCell()
	}
	if active {
		v.ActiveCell = &ref
	}
	return v
}

func (s *Session) setActiveCell(ref types.CellRef) error {
	if s.Mode == ModeEdit {
		return s.edit.SetActiveCell(ref)
	}
	return s.create.SetActiveCell(ref)
}

func (s *Session) clearActiveCell() {
	if s.Mode == ModeEdit {
		s.edit.ClearActiveCell()
		return
	}
	s.create.ClearActiveCell()
}

func (s *Session) hasUnsavedChanges() bool {
	if s.Mode == ModeEdit {
		return s.edit.HasUnsavedChanges()
	}
	return s.create.HasUnsavedChanges()
}

// record appends a journal entry when the session is journaled.
func (s *Session) record(e *journal.Entry) error {
	if s.journal == nil {
		return nil
	}
	_, err := s.journal.Append(e)
	return err
}
