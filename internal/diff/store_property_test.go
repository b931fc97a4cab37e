package diff

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/coachgrid/tabledit/pkg/types"
)

type edit struct {
	Row   int
	Col   int
	Value string
}

var propColumns = []string{"a", "b", "c"}

func propSource(n int) []types.Row {
	rows := make([]types.Row, n)
	for i := range rows {
		rows[i] = types.Row{ID: fmt.Sprintf("r%d", i), Cells: map[string]string{
			"a": fmt.Sprintf("a%d", i%3), "b": "x", "c": "",
		}}
	}
	return rows
}

func editGen(rows int) gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, rows-1),
		gen.IntRange(0, len(propColumns)-1),
		gen.OneConstOf("", "x", "y", "a0", "a1", "a2"),
	).Map(func(v []interface{}) edit {
		return edit{Row: v[0].(int), Col: v[1].(int), Value: v[2].(string)}
	})
}

// TestProperty_DiffsMatchSource validates that after any edit sequence the
// diff map holds exactly the cells that differ from source, and never an
// empty row entry.
func TestProperty_DiffsMatchSource(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	const n = 5
	properties.Property("diffs equal the set of cells differing from source", prop.ForAll(
		func(edits []edit) bool {
			src := propSource(n)
			s := NewStore(src, propColumns)
			current := make([]map[string]string, n)
			for i := range current {
				current[i] = types.Row{Cells: src[i].Cells}.Clone().Cells
			}
			for _, e := range edits {
				col := propColumns[e.Col]
				if err := s.UpdateDiff(src[e.Row].ID, col, e.Value); err != nil {
					return false
				}
				current[e.Row][col] = e.Value
			}

			d := s.Diffs()
			for i, r := range src {
				cells, dirty := d[r.ID]
				if dirty && len(cells) == 0 {
					return false
				}
				changed := 0
				for _, col := range propColumns {
					if current[i][col] != r.Cells[col] {
						changed++
						if cells[col] != current[i][col] {
							return false
						}
					}
				}
				if changed != len(cells) || dirty != (changed > 0) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(editGen(n)),
	))

	properties.Property("writing the source value back clears the cell", prop.ForAll(
		func(e edit) bool {
			src := propSource(n)
			s := NewStore(src, propColumns)
			col := propColumns[e.Col]
			s.UpdateDiff(src[e.Row].ID, col, e.Value)
			s.UpdateDiff(src[e.Row].ID, col, src[e.Row].Cells[col])
			return len(s.DirtyRowIDs()) == 0
		},
		editGen(n),
	))

	properties.Property("re-applying the merged rows yields the same diffs", prop.ForAll(
		func(edits []edit) bool {
			src := propSource(n)
			s := NewStore(src, propColumns)
			for _, e := range edits {
				s.UpdateDiff(src[e.Row].ID, propColumns[e.Col], e.Value)
			}
			before := s.Diffs()
			merged := make([]types.Row, len(src))
			for i, r := range src {
				m := r.Clone()
				for k, v := range before[r.ID] {
					m.Cells[k] = v
				}
				merged[i] = m
			}
			s.SetRowsViaDiffs(merged)
			after := s.Diffs()
			if len(before) != len(after) {
				return false
			}
			for id, cells := range before {
				for k, v := range cells {
					if after[id][k] != v {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(editGen(n)),
	))

	properties.TestingRun(t)
}
