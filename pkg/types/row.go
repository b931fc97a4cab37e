// Package types provides the core table data types shared by tabledit components.
package types

// GhostRowID identifies the trailing placeholder row of a create-mode table.
const GhostRowID = "__ghost__"

// RootErrorKey holds row-level errors that are not tied to a single column.
const RootErrorKey = "_root"

// Row is a table row. All cells hold canonical strings regardless of column type.
type Row struct {
	ID    string            `json:"id"`
	Cells map[string]string `json:"cells"`
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	cells := make(map[string]string, len(r.Cells))
	for k, v := range r.Cells {
		cells[k] = v
	}
	return Row{ID: r.ID, Cells: cells}
}

// IsGhost reports whether the row is the create-mode placeholder.
func (r Row) IsGhost() bool {
	return r.ID == GhostRowID
}

// NewGhostRow returns an empty placeholder row with every column present.
func NewGhostRow(cols []Column) Row {
	cells := make(map[string]string, len(cols))
	for _, c := range cols {
		cells[c.ID] = ""
	}
	return Row{ID: GhostRowID, Cells: cells}
}

// Diffs maps row id to the cells whose value differs from the source row.
// A present row always has at least one cell.
type Diffs map[string]map[string]string

// Clone returns a deep copy of the diffs.
func (d Diffs) Clone() Diffs {
	out := make(Diffs, len(d))
	for rowID, cells := range d {
		cp := make(map[string]string, len(cells))
		for k, v := range cells {
			cp[k] = v
		}
		out[rowID] = cp
	}
	return out
}

// RowIDs returns the dirty row ids in no particular order.
func (d Diffs) RowIDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	return ids
}

// CellRef addresses one cell.
type CellRef struct {
	RowID    string `json:"row_id"`
	ColumnID string `json:"column_id"`
}

// GridPos addresses a cell by display position.
type GridPos struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Record is a row mapped to typed values keyed by column id. Empty cells map to nil.
type Record map[string]any
