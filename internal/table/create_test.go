package table

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/internal/normalize"
	"github.com/coachgrid/tabledit/internal/validation"
	"github.com/coachgrid/tabledit/pkg/types"
)

type learner struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func learnerColumns() []types.Column {
	return []types.Column{
		{ID: "name", Type: types.ColumnText},
		{ID: "age", Type: types.ColumnNumber},
	}
}

// sequentialIDs returns a deterministic id generator.
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

func learnerSchema() *validation.StructSchema[learner] {
	return validation.NewStructSchema(func(l learner) []validation.FieldError {
		var out []validation.FieldError
		if l.Name == "" {
			out = append(out, validation.FieldError{Path: "name", Message: "is required"})
		}
		if l.Age < 0 {
			out = append(out, validation.FieldError{Path: "age", Message: "must not be negative"})
		}
		return out
	})
}

func newLearnerTable(t *testing.T, withSchema bool) *CreateTable[learner] {
	t.Helper()
	opts := []Option[learner]{WithIDGenerator[learner](sequentialIDs())}
	if withSchema {
		v, err := validation.New[learner](learnerColumns(), normalize.JSONMapper[learner]{},
			validation.WithRowSchema[learner](learnerSchema()))
		if err != nil {
			t.Fatal(err)
		}
		opts = append(opts, WithValidator(v))
	}
	tbl, err := NewCreateTable[learner](learnerColumns(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func assertGhostLast(t *testing.T, rows []types.Row) {
	t.Helper()
	ghosts := 0
	for _, r := range rows {
		if r.IsGhost() {
			ghosts++
		}
	}
	if ghosts != 1 || !rows[len(rows)-1].IsGhost() {
		t.Fatalf("want exactly one trailing ghost row, got %v", rows)
	}
}

func TestCreateTable_ImportData(t *testing.T) {
	tbl := newLearnerTable(t, false)

	if err := tbl.ImportData([]learner{{Name: "Bob", Age: 25}}); err != nil {
		t.Fatal(err)
	}
	rows := tbl.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}
	want := map[string]string{"name": "Bob", "age": "25"}
	if !reflect.DeepEqual(rows[0].Cells, want) {
		t.Errorf("imported cells = %v, want %v", rows[0].Cells, want)
	}
	assertGhostLast(t, rows)
}

func TestCreateTable_GhostPromotion(t *testing.T) {
	tbl := newLearnerTable(t, false)
	tbl.SetActiveCell(types.CellRef{RowID: types.GhostRowID, ColumnID: "name"})

	promoted, err := tbl.UpdateCell(types.GhostRowID, "name", "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if !promoted {
		t.Error("editing the ghost row should promote it")
	}
	rows := tbl.Rows()
	if len(rows) != 2 || rows[0].ID != "new-1" || rows[0].Cells["name"] != "Ana" {
		t.Fatalf("rows = %v", rows)
	}
	assertGhostLast(t, rows)
	if ref, _ := tbl.ActiveCell(); ref.RowID != "new-1" {
		t.Errorf("focus should follow the promoted row, got %v", ref)
	}

	promoted, err = tbl.UpdateCell("new-1", "age", "30")
	if err != nil || promoted {
		t.Errorf("editing a data row: promoted=%v err=%v", promoted, err)
	}

	promoted, err = tbl.UpdateCell(types.GhostRowID, "age", "")
	if err != nil || promoted {
		t.Errorf("clearing a ghost cell: promoted=%v err=%v", promoted, err)
	}
	if len(tbl.Rows()) != 2 {
		t.Error("clearing a ghost cell must not add rows")
	}
}

func TestCreateTable_BlankGhostEditDoesNotPromote(t *testing.T) {
	tbl := newLearnerTable(t, false)

	for _, v := range []string{"  ", "\t", " \t "} {
		promoted, err := tbl.UpdateCell(types.GhostRowID, "name", v)
		if err != nil {
			t.Fatal(err)
		}
		if promoted {
			t.Errorf("UpdateCell(ghost, %q) promoted the ghost row", v)
		}
	}
	rows := tbl.Rows()
	if len(rows) != 1 || !rows[0].IsGhost() {
		t.Fatalf("rows = %v, want only the ghost row", rows)
	}
}

func TestCreateTable_SetRows(t *testing.T) {
	tbl := newLearnerTable(t, false)

	err := tbl.SetRows([]types.Row{
		{ID: "a", Cells: map[string]string{"name": "A"}},
		types.NewGhostRow(learnerColumns()),
		{ID: "b", Cells: map[string]string{"name": "B"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	rows := tbl.Rows()
	if len(rows) != 3 || rows[0].ID != "a" || rows[1].ID != "b" {
		t.Fatalf("rows = %v", rows)
	}
	assertGhostLast(t, rows)

	err = tbl.SetRows([]types.Row{{ID: "a"}, {ID: "a"}})
	if tderrors.GetCode(err) != tderrors.CodeDuplicateRow {
		t.Errorf("duplicate ids: %v", err)
	}
}

func TestCreateTable_PasteExtendsRows(t *testing.T) {
	tbl := newLearnerTable(t, false)
	tbl.UpdateCell(types.GhostRowID, "name", "Ana")

	res, err := tbl.HandlePaste("Ben\t20\nCleo\t21\n", types.GridPos{Row: 1, Column: 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.RowsCreated != 2 || res.CellsAffected != 4 {
		t.Errorf("result = %+v", res)
	}
	rows := tbl.Rows()
	if len(rows) != 4 || rows[1].Cells["name"] != "Ben" || rows[2].Cells["age"] != "21" {
		t.Fatalf("rows = %v", rows)
	}
	assertGhostLast(t, rows)

	res, err = tbl.HandlePaste("Anna", types.GridPos{Row: 0, Column: 0})
	if err != nil || res.RowsCreated != 0 {
		t.Fatalf("overwrite: %+v %v", res, err)
	}
	if tbl.Rows()[0].Cells["name"] != "Anna" {
		t.Error("paste should overwrite existing rows")
	}
}

func TestCreateTable_Reset(t *testing.T) {
	tbl := newLearnerTable(t, false)
	tbl.ImportData([]learner{{Name: "A"}, {Name: "B"}})
	tbl.Reset()

	rows := tbl.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	assertGhostLast(t, rows)
	if tbl.HasUnsavedChanges() {
		t.Error("reset table has nothing to save")
	}
}

func TestCreateTable_SaveDataRequiresRowSchema(t *testing.T) {
	tbl := newLearnerTable(t, false)
	tbl.ImportData([]learner{{Name: "A", Age: 1}})

	_, err := tbl.SaveData()
	if !tderrors.IsConfigError(err) || tderrors.GetCode(err) != tderrors.CodeMissingSchema {
		t.Errorf("without validator: %v", err)
	}

	// Column schemas alone are not enough.
	cols := []types.Column{{ID: "name", Type: types.ColumnText, Validate: "required"}}
	v, err := validation.New[learner](cols, nil)
	if err != nil {
		t.Fatal(err)
	}
	colOnly, err := NewCreateTable[learner](cols, WithValidator(v))
	if err != nil {
		t.Fatal(err)
	}
	colOnly.UpdateCell(types.GhostRowID, "name", "A")
	if _, err := colOnly.SaveData(); tderrors.GetCode(err) != tderrors.CodeMissingSchema {
		t.Errorf("column schemas only: %v", err)
	}
}

func TestCreateTable_SaveData(t *testing.T) {
	tbl := newLearnerTable(t, true)
	tbl.ImportData([]learner{{Name: "Bob", Age: 25}})
	tbl.UpdateCell(types.GhostRowID, "name", " Eve ")
	tbl.UpdateCell("new-2", "age", "31.0")

	got, err := tbl.SaveData()
	if err != nil {
		t.Fatal(err)
	}
	want := []learner{{Name: "Bob", Age: 25}, {Name: "Eve", Age: 31}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SaveData = %v, want %v", got, want)
	}

	tbl.UpdateCell("new-2", "age", "-1")
	if _, err := tbl.SaveData(); tderrors.GetCode(err) != tderrors.CodeInvalidRows {
		t.Errorf("invalid row: %v", err)
	}
}

func TestCreateTable_Save(t *testing.T) {
	tbl := newLearnerTable(t, true)
	var got []Change[learner]
	creator := CreatorFunc[learner](func(_ context.Context, changes []Change[learner]) error {
		got = changes
		return nil
	})

	if _, err := tbl.Save(context.Background(), creator); tderrors.GetCode(err) != tderrors.CodeNothingToSave {
		t.Errorf("empty table: %v", err)
	}

	tbl.UpdateCell(types.GhostRowID, "name", "Ana")
	n, err := tbl.Save(context.Background(), creator)
	if err != nil || n != 1 {
		t.Fatalf("Save = %d, %v", n, err)
	}
	if got[0].RowID != "new-1" || got[0].Entity.Name != "Ana" || got[0].Cells["age"] != "" {
		t.Errorf("change = %+v", got[0])
	}
	if len(tbl.Rows()) != 1 {
		t.Error("successful save resets the table")
	}

	boom := errors.New("insert failed")
	tbl.UpdateCell(types.GhostRowID, "name", "Ben")
	_, err = tbl.Save(context.Background(), CreatorFunc[learner](func(context.Context, []Change[learner]) error {
		return boom
	}))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if len(tbl.DataRows()) != 1 {
		t.Error("failed save keeps rows")
	}
}
