package source

import (
	"context"

	"github.com/coachgrid/tabledit/internal/table"
	"github.com/coachgrid/tabledit/pkg/types"
)

// Writer is the save collaborator of one table. It satisfies both
// table.Updater and table.Creator for record tables.
type Writer struct {
	store     *Store
	tableName string
}

// Writer returns the save collaborator for a table.
func (s *Store) Writer(tableName string) *Writer {
	return &Writer{store: s, tableName: tableName}
}

// UpdateRows writes the changed cells of existing rows.
func (w *Writer) UpdateRows(ctx context.Context, changes []table.Change[types.Record]) error {
	return w.store.Update(ctx, w.tableName, changeRows(changes))
}

// CreateRows appends new rows.
func (w *Writer) CreateRows(ctx context.Context, changes []table.Change[types.Record]) error {
	return w.store.Insert(ctx, w.tableName, changeRows(changes))
}

func changeRows(changes []table.Change[types.Record]) []types.Row {
	rows := make([]types.Row, len(changes))
	for i, c := range changes {
		rows[i] = types.Row{ID: c.RowID, Cells: c.Cells}
	}
	return rows
}
