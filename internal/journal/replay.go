package journal

import (
	"fmt"
	"log"

	"github.com/coachgrid/tabledit/internal/table"
	"github.com/coachgrid/tabledit/pkg/types"
)

// Target receives replayed operations. *table.EditTable satisfies it.
type Target interface {
	UpdateCell(rowID, columnID, value string) error
	HandlePaste(text string, at types.GridPos) (table.PasteResult, error)
	DiscardChanges()
	RestoreDiffs(d types.Diffs)
}

// ReplayStats reports what a replay did.
type ReplayStats struct {
	Applied int
	Skipped int
}

// Replay applies entries to t in order. The target must already hold the
// current source rows, so edits that no longer differ from the source or
// that address deleted rows are dropped rather than resurrected.
func Replay(entries []*Entry, t Target) ReplayStats {
	var stats ReplayStats
	for _, e := range entries {
		if err := apply(e, t); err != nil {
			log.Printf("journal: skipping entry %d: %v", e.Seq, err)
			stats.Skipped++
			continue
		}
		stats.Applied++
	}
	return stats
}

func apply(e *Entry, t Target) error {
	switch e.Kind {
	case OpUpdate:
		if e.Cell == nil {
			return fmt.Errorf("update without cell")
		}
		return t.UpdateCell(e.Cell.RowID, e.Cell.ColumnID, e.Value)
	case OpPaste:
		if e.At == nil {
			return fmt.Errorf("paste without anchor")
		}
		_, err := t.HandlePaste(e.Text, *e.At)
		return err
	case OpClear:
		t.DiscardChanges()
		return nil
	case OpRestore:
		t.RestoreDiffs(e.Diffs)
		return nil
	default:
		return fmt.Errorf("unknown operation %q", e.Kind)
	}
}
