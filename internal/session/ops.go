package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/coachgrid/tabledit/internal/diff"
	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/internal/journal"
	"github.com/coachgrid/tabledit/internal/notify"
	"github.com/coachgrid/tabledit/internal/observability"
	"github.com/coachgrid/tabledit/internal/snapshot"
	"github.com/coachgrid/tabledit/internal/table"
	"github.com/coachgrid/tabledit/pkg/types"
)

// ErrSnapshotsDisabled is returned when no object storage is configured.
var ErrSnapshotsDisabled = errors.New("session: snapshots are not configured")

// CellResult reports the effect of a cell edit.
type CellResult struct {
	// Promoted is set when a create-mode edit turned the ghost row into a
	// real row; RowID is then the new row's id.
	Promoted bool   `json:"promoted,omitempty"`
	RowID    string `json:"row_id"`
}

// SaveResult reports a successful save.
type SaveResult struct {
	Saved int `json:"saved"`
}

// UpdateCell sets one cell of a session.
func (m *Manager) UpdateCell(id, rowID, columnID, value string) (CellResult, error) {
	var res CellResult
	err := m.with(id, func(s *Session) error {
		res.RowID = rowID
		switch s.Mode {
		case ModeEdit:
			if err := s.edit.UpdateCell(rowID, columnID, value); err != nil {
				return err
			}
			if err := s.record(journal.Update(rowID, columnID, value)); err != nil {
				log.Printf("session: journal append failed for %s: %v", s.ID, err)
			}
		case ModeCreate:
			promoted, err := s.create.UpdateCell(rowID, columnID, value)
			if err != nil {
				return err
			}
			if promoted {
				rows := s.create.DataRows()
				res.Promoted, res.RowID = true, rows[len(rows)-1].ID
			}
		}
		m.countEdit(s, columnID)
		return nil
	})
	return res, err
}

// Paste applies clipboard text. A nil anchor pastes at the active cell.
func (m *Manager) Paste(id, text string, at *types.GridPos) (table.PasteResult, error) {
	var res table.PasteResult
	err := m.with(id, func(s *Session) error {
		var err error
		switch s.Mode {
		case ModeEdit:
			pos, perr := m.anchor(s, at)
			if perr != nil {
				return perr
			}
			if res, err = s.edit.HandlePaste(text, pos); err != nil {
				return err
			}
			if res.CellsAffected > 0 {
				if err := s.record(journal.Paste(text, pos)); err != nil {
					log.Printf("session: journal append failed for %s: %v", s.ID, err)
				}
			}
		case ModeCreate:
			if at == nil {
				res, err = s.create.HandlePasteAtActive(text)
			} else {
				res, err = s.create.HandlePaste(text, *at)
			}
			if err != nil {
				return err
			}
		}
		m.countPaste(s, text, at, res)
		return nil
	})
	return res, err
}

// anchor resolves the paste position of an edit session so the journal
// records a position rather than a focus.
func (m *Manager) anchor(s *Session, at *types.GridPos) (types.GridPos, error) {
	if at != nil {
		return *at, nil
	}
	ref, ok := s.edit.ActiveCell()
	if !ok {
		return types.GridPos{}, table.ErrNoActiveCell
	}
	pos := types.GridPos{Row: -1}
	for i, r := range s.edit.Rows() {
		if r.ID == ref.RowID {
			pos.Row = i
			break
		}
	}
	for i, c := range s.def.Columns {
		if c.ID == ref.ColumnID {
			pos.Column = i
			break
		}
	}
	if pos.Row < 0 {
		return pos, fmt.Errorf("%w: %s", types.ErrUnknownRow, ref.RowID)
	}
	return pos, nil
}

// Focus sets the active cell.
func (m *Manager) Focus(id string, ref types.CellRef) error {
	return m.with(id, func(s *Session) error {
		return s.setActiveCell(ref)
	})
}

// Blur clears the active cell.
func (m *Manager) Blur(id string) error {
	return m.with(id, func(s *Session) error {
		s.clearActiveCell()
		return nil
	})
}

// Discard drops every unsaved change of a session.
func (m *Manager) Discard(id string) error {
	return m.with(id, func(s *Session) error {
		if s.Mode == ModeCreate {
			s.create.Reset()
			return nil
		}
		s.edit.DiscardChanges()
		if s.journal != nil {
			if err := s.journal.Truncate(); err != nil {
				log.Printf("session: journal truncate failed for %s: %v", s.ID, err)
			}
		}
		return nil
	})
}

// Save persists a session's changes to the source store. Edit sessions
// then reload their source rows, which clears the saved diffs; create
// sessions are emptied. Other sessions on the table are told to refresh.
func (m *Manager) Save(ctx context.Context, id string) (SaveResult, error) {
	var (
		res       SaveResult
		tableName string
	)
	err := m.with(id, func(s *Session) error {
		tableName = s.Table
		start := m.now()
		var err error
		switch s.Mode {
		case ModeEdit:
			res.Saved, err = s.edit.Save(ctx, m.source.Writer(s.Table))
		case ModeCreate:
			res.Saved, err = s.create.Save(ctx, m.source.Writer(s.Table))
		}
		m.countSave(s, start, err)
		if err != nil {
			return err
		}

		if s.Mode == ModeEdit {
			if err := m.reload(ctx, s); err != nil {
				return err
			}
			// Every diff was written, possibly in normalized spelling.
			s.edit.RestoreDiffs(types.Diffs{})
			if s.journal != nil {
				if err := s.journal.Truncate(); err != nil {
					log.Printf("session: journal truncate failed for %s: %v", s.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	log.Printf("session: %s saved %d rows to %s", id, res.Saved, tableName)
	if m.notifier != nil {
		m.notifier.Publish(notify.Event{Type: notify.SourceRefreshed, Table: tableName, Origin: id})
	}
	return res, nil
}

// Refresh reloads the source rows of an edit session.
func (m *Manager) Refresh(ctx context.Context, id string) error {
	return m.with(id, func(s *Session) error {
		if s.Mode != ModeEdit {
			return nil
		}
		return m.reload(ctx, s)
	})
}

// reload refetches source rows. The caller holds s.mu.
func (m *Manager) reload(ctx context.Context, s *Session) error {
	rows, err := m.source.Load(ctx, s.Table)
	if err != nil {
		return err
	}
	if err := s.edit.SetSource(rows); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.SourceRefreshes.WithLabelValues(s.Table).Inc()
	}
	return nil
}

// Snapshot stores the current source rows of a table.
func (m *Manager) Snapshot(ctx context.Context, tableName string) (*snapshot.Snapshot, error) {
	if m.snapW == nil {
		return nil, ErrSnapshotsDisabled
	}
	def, err := m.registry.Get(tableName)
	if err != nil {
		return nil, err
	}
	rows, err := m.source.Load(ctx, tableName)
	if err != nil {
		return nil, err
	}
	snap, err := m.snapW.Write(ctx, tableName, def.Columns, rows)
	if err != nil {
		return nil, err
	}
	log.Printf("session: stored snapshot %s of %s (%d rows)", snap.ID, tableName, len(snap.Rows))
	return snap, nil
}

// Snapshots lists the snapshot ids of a table.
func (m *Manager) Snapshots(ctx context.Context, tableName string) ([]string, error) {
	if m.snapR == nil {
		return nil, ErrSnapshotsDisabled
	}
	if _, err := m.registry.Get(tableName); err != nil {
		return nil, err
	}
	return m.snapR.List(ctx, tableName)
}

// Import loads a snapshot of the session's table into the session. An edit
// session takes the snapshot values of rows that still exist as edits; a
// create session gets the snapshot rows as new rows with fresh ids.
// It returns the number of rows touched.
func (m *Manager) Import(ctx context.Context, id, snapshotID string) (int, error) {
	if m.snapR == nil {
		return 0, ErrSnapshotsDisabled
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return 0, errNotFound(id)
	}
	snap, err := m.snapR.Read(ctx, s.Table, snapshotID)
	if err != nil {
		return 0, err
	}

	var n int
	err = m.with(id, func(s *Session) error {
		switch s.Mode {
		case ModeEdit:
			d := diff.Compute(snap.Rows, s.edit.Rows(), editableSet(s.def.Columns))
			merged := s.edit.Diffs().Clone()
			for rowID, cells := range d {
				if merged[rowID] == nil {
					merged[rowID] = make(map[string]string, len(cells))
				}
				for k, v := range cells {
					merged[rowID][k] = v
				}
			}
			s.edit.RestoreDiffs(merged)
			n = len(d)
			if err := s.record(journal.Restore(s.edit.Diffs())); err != nil {
				log.Printf("session: journal append failed for %s: %v", s.ID, err)
			}
		case ModeCreate:
			rows := make([]types.Row, 0, len(snap.Rows))
			for _, r := range snap.Rows {
				rows = append(rows, types.Row{ID: uuid.NewString(), Cells: r.Cells})
			}
			if err := s.create.SetRows(rows); err != nil {
				return err
			}
			n = len(rows)
		}
		return nil
	})
	return n, err
}

// listen reloads edit sessions when another writer changed their table.
func (m *Manager) listen(ctx context.Context, events <-chan notify.Event) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.refreshTable(ctx, ev)
		}
	}
}

func (m *Manager) refreshTable(ctx context.Context, ev notify.Event) {
	m.mu.RLock()
	var ids []string
	for id, s := range m.sessions {
		if s.Table == ev.Table && s.Mode == ModeEdit && id != ev.Origin {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		err := m.with(id, func(s *Session) error { return m.reload(ctx, s) })
		if err != nil && tderrors.GetCode(err) != tderrors.CodeSessionNotFound {
			log.Printf("session: failed to refresh %s after change to %s: %v", id, ev.Table, err)
		}
	}
}

func (m *Manager) countEdit(s *Session, columnID string) {
	if m.metrics != nil {
		m.metrics.CellEdits.WithLabelValues(s.Table, string(s.Mode)).Inc()
	}
	if m.stats != nil {
		m.stats.Record(s.Table, columnID, "edit")
	}
}

func (m *Manager) countPaste(s *Session, text string, at *types.GridPos, res table.PasteResult) {
	if res.CellsAffected == 0 {
		return
	}
	if m.metrics != nil {
		m.metrics.Pastes.WithLabelValues(s.Table, string(s.Mode)).Inc()
		m.metrics.PastedCells.WithLabelValues(s.Table).Add(float64(res.CellsAffected))
	}
	if m.stats == nil || at == nil {
		return
	}
	width := 0
	for _, line := range table.ParseClipboard(text) {
		if len(line) > width {
			width = len(line)
		}
	}
	for c := at.Column; c < at.Column+width && c < len(s.def.Columns); c++ {
		if s.def.Columns[c].IsEditable() {
			m.stats.Record(s.Table, s.def.Columns[c].ID, "paste")
		}
	}
}

func (m *Manager) countSave(s *Session, start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	outcome := observability.OutcomeSaved
	switch {
	case err == nil:
		m.metrics.SaveDuration.WithLabelValues(s.Table, string(s.Mode)).Observe(m.now().Sub(start).Seconds())
	case tderrors.GetCode(err) == tderrors.CodeNothingToSave:
		outcome = observability.OutcomeNothingToSave
	case tderrors.GetCode(err) == tderrors.CodeInvalidRows:
		outcome = observability.OutcomeInvalid
		var n int
		if s.Mode == ModeEdit {
			n = s.edit.Validation().Count()
		} else {
			n = s.create.Validation().Count()
		}
		m.metrics.ValidationFailures.WithLabelValues(s.Table).Add(float64(n))
	default:
		outcome = observability.OutcomeFailed
	}
	m.metrics.Saves.WithLabelValues(s.Table, string(s.Mode), outcome).Inc()
}

func editableSet(cols []types.Column) map[string]bool {
	out := make(map[string]bool, len(cols))
	for _, id := range types.EditableIDs(cols) {
		out[id] = true
	}
	return out
}
