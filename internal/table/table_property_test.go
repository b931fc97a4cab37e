package table

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/coachgrid/tabledit/internal/normalize"
	"github.com/coachgrid/tabledit/internal/validation"
	"github.com/coachgrid/tabledit/pkg/types"
)

var propColumns = []types.Column{
	{ID: "a", Type: types.ColumnText},
	{ID: "b", Type: types.ColumnText},
	{ID: "c", Type: types.ColumnText},
}

func propValueGen() gopter.Gen {
	return gen.OneConstOf("", "x", "y", "two words", "tab\there", "multi\nline", `"q"`, ` pad `)
}

type createOp struct {
	Kind  int
	Row   int
	Col   int
	Value string
	Count int
}

func createOpGen() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 4),
		gen.IntRange(0, 6),
		gen.IntRange(0, len(propColumns)-1),
		propValueGen(),
		gen.IntRange(0, 3),
	).Map(func(v []interface{}) createOp {
		return createOp{Kind: v[0].(int), Row: v[1].(int), Col: v[2].(int), Value: v[3].(string), Count: v[4].(int)}
	})
}

func ghostInvariantHolds(rows []types.Row) bool {
	if len(rows) == 0 || !rows[len(rows)-1].IsGhost() {
		return false
	}
	for _, r := range rows[:len(rows)-1] {
		if r.IsGhost() {
			return false
		}
	}
	return true
}

// TestProperty_GhostRowInvariant validates that a create table always ends
// in exactly one ghost row whatever sequence of operations is applied.
func TestProperty_GhostRowInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("exactly one trailing ghost row", prop.ForAll(
		func(ops []createOp) bool {
			tbl, err := NewCreateTable[types.Record](propColumns,
				WithIDGenerator[types.Record](sequentialIDs()),
				WithMapper[types.Record](normalize.RecordMapper{}))
			if err != nil {
				return false
			}
			for _, op := range ops {
				rows := tbl.Rows()
				row := rows[op.Row%len(rows)]
				col := propColumns[op.Col].ID
				switch op.Kind {
				case 0:
					tbl.UpdateCell(row.ID, col, op.Value)
				case 1:
					recs := make([]types.Record, op.Count)
					for i := range recs {
						recs[i] = types.Record{"a": op.Value}
					}
					tbl.ImportData(recs)
				case 2:
					tbl.Reset()
				case 3:
					tbl.HandlePaste(FormatClipboard([][]string{{op.Value, "p"}, {"q"}}),
						types.GridPos{Row: op.Row % len(rows), Column: op.Col})
				case 4:
					tbl.SetRows(append(tbl.Rows(), types.NewGhostRow(propColumns)))
				}
				if !ghostInvariantHolds(tbl.Rows()) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(createOpGen()),
	))

	properties.TestingRun(t)
}

type cellEdit struct {
	Row   int
	Col   int
	Value string
}

func cellEditGen(rows int) gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, rows-1),
		gen.IntRange(0, len(propColumns)-1),
		propValueGen(),
	).Map(func(v []interface{}) cellEdit {
		return cellEdit{Row: v[0].(int), Col: v[1].(int), Value: v[2].(string)}
	})
}

func propSource(values []string) []types.Row {
	rows := make([]types.Row, 4)
	for i := range rows {
		cells := make(map[string]string, len(propColumns))
		for j, c := range propColumns {
			cells[c.ID] = values[(i*len(propColumns)+j)%len(values)]
		}
		rows[i] = types.Row{ID: fmt.Sprintf("r%d", i), Cells: cells}
	}
	return rows
}

func displayedGrid(rows []types.Row) [][]string {
	grid := make([][]string, len(rows))
	for i, r := range rows {
		line := make([]string, len(propColumns))
		for j, c := range propColumns {
			line[j] = r.Cells[c.ID]
		}
		grid[i] = line
	}
	return grid
}

// TestProperty_PasteRoundTrip validates that pasting the displayed values
// over themselves changes nothing.
func TestProperty_PasteRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("paste of displayed values keeps the diffs", prop.ForAll(
		func(values []string, edits []cellEdit) bool {
			tbl, err := NewEditTable[types.Record](propColumns, propSource(values))
			if err != nil {
				return false
			}
			for _, e := range edits {
				tbl.UpdateCell(fmt.Sprintf("r%d", e.Row), propColumns[e.Col].ID, e.Value)
			}
			before := tbl.Diffs()

			text := FormatClipboard(displayedGrid(tbl.Rows()))
			if _, err := tbl.HandlePaste(text, types.GridPos{}); err != nil {
				return false
			}
			after := tbl.Diffs()
			if len(edits) == 0 && len(after) != 0 {
				return false
			}
			return reflect.DeepEqual(map[string]map[string]string(before), map[string]map[string]string(after))
		},
		gen.SliceOfN(5, propValueGen()),
		gen.SliceOf(cellEditGen(4)),
	))

	properties.TestingRun(t)
}

// TestProperty_SaveExclusivity validates that dirty rows are exactly the
// displayed rows with at least one changed cell.
func TestProperty_SaveExclusivity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("dirty rows match the dirty ids", prop.ForAll(
		func(edits []cellEdit) bool {
			source := propSource([]string{"x", "y", "", "two words"})
			tbl, err := NewEditTable[types.Record](propColumns, source)
			if err != nil {
				return false
			}
			for _, e := range edits {
				tbl.UpdateCell(fmt.Sprintf("r%d", e.Row), propColumns[e.Col].ID, e.Value)
			}

			dirty := tbl.GetDirtyRows()
			ids := tbl.DirtyRowIDs()
			if len(dirty) != len(ids) {
				return false
			}
			for i, r := range dirty {
				if r.ID != ids[i] {
					return false
				}
			}
			dirtySet := make(map[string]bool, len(ids))
			for _, id := range ids {
				dirtySet[id] = true
			}
			for i, r := range tbl.Rows() {
				changed := false
				for _, c := range propColumns {
					if r.Cells[c.ID] != source[i].Cells[c.ID] {
						changed = true
					}
				}
				if changed != dirtySet[r.ID] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(cellEditGen(4)),
	))

	properties.TestingRun(t)
}

// TestProperty_ValidationGatesSave validates that the save collaborator is
// never invoked while any row is invalid.
func TestProperty_ValidationGatesSave(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	cols := []types.Column{
		{ID: "a", Type: types.ColumnText, Validate: "required"},
		{ID: "b", Type: types.ColumnText},
		{ID: "c", Type: types.ColumnText},
	}

	properties.Property("invalid tables never reach the collaborator", prop.ForAll(
		func(edits []cellEdit) bool {
			v, err := validation.New[types.Record](cols, normalize.RecordMapper{})
			if err != nil {
				return false
			}
			tbl, err := NewEditTable[types.Record](cols, propSource([]string{"x", "y", "z"}),
				WithValidator(v), WithMapper[types.Record](normalize.RecordMapper{}))
			if err != nil {
				return false
			}
			for _, e := range edits {
				tbl.UpdateCell(fmt.Sprintf("r%d", e.Row), cols[e.Col].ID, e.Value)
			}

			called := false
			_, err = tbl.Save(context.Background(), UpdaterFunc[types.Record](
				func(context.Context, []Change[types.Record]) error {
					called = true
					return nil
				}))

			st := tbl.Validation()
			if !st.IsValid {
				return !called && err != nil
			}
			return called == tbl.HasUnsavedChanges()
		},
		gen.SliceOf(cellEditGen(4)),
	))

	properties.TestingRun(t)
}
