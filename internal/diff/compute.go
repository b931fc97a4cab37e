package diff

import (
	"github.com/coachgrid/tabledit/pkg/types"
)

// Compute returns the cells of rows that differ from the matching source row
// in an editable column. Rows without a source counterpart are ignored, and
// cells missing from a row are treated as unchanged.
func Compute(rows, source []types.Row, editable map[string]bool) types.Diffs {
	index := make(map[string]int, len(source))
	for i, r := range source {
		index[r.ID] = i
	}

	out := types.Diffs{}
	for _, r := range rows {
		i, ok := index[r.ID]
		if !ok {
			continue
		}
		src := source[i]
		var cells map[string]string
		for col, v := range r.Cells {
			if !editable[col] || src.Cells[col] == v {
				continue
			}
			if cells == nil {
				cells = make(map[string]string)
			}
			cells[col] = v
		}
		if cells != nil {
			out[r.ID] = cells
		}
	}
	return out
}

// Cleanup drops cells equal to the current source value, rows left empty and
// rows no longer present in source. The input is returned untouched when it
// is already clean; otherwise a new map is built.
func Cleanup(d types.Diffs, source []types.Row, index map[string]int) types.Diffs {
	if !needsCleanup(d, source, index) {
		return d
	}

	out := make(types.Diffs, len(d))
	for rowID, cells := range d {
		i, ok := index[rowID]
		if !ok {
			continue
		}
		src := source[i]
		var kept map[string]string
		for col, v := range cells {
			if src.Cells[col] == v {
				continue
			}
			if kept == nil {
				kept = make(map[string]string, len(cells))
			}
			kept[col] = v
		}
		if kept != nil {
			out[rowID] = kept
		}
	}
	return out
}

func needsCleanup(d types.Diffs, source []types.Row, index map[string]int) bool {
	for rowID, cells := range d {
		i, ok := index[rowID]
		if !ok || len(cells) == 0 {
			return true
		}
		for col, v := range cells {
			if source[i].Cells[col] == v {
				return true
			}
		}
	}
	return false
}

// withoutRow copies the outer map, omitting one row. Inner maps are
// shared, which is safe because they are never written after publication.
func withoutRow(d types.Diffs, rowID string) types.Diffs {
	out := make(types.Diffs, len(d))
	for id, cells := range d {
		if id != rowID {
			out[id] = cells
		}
	}
	return out
}

func copyCells(cells map[string]string) map[string]string {
	out := make(map[string]string, len(cells)+1)
	for k, v := range cells {
		out[k] = v
	}
	return out
}
