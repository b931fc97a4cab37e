package source

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/internal/table"
	"github.com/coachgrid/tabledit/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "source.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_InsertAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rows := []types.Row{
		{ID: "r1", Cells: map[string]string{"word": "hola", "level": "a1"}},
		{ID: "r2", Cells: map[string]string{"word": "adiós", "level": "a2"}},
	}
	if err := s.Insert(ctx, "vocabulary", rows); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, "vocabulary", []types.Row{{ID: "r0", Cells: map[string]string{"word": "sí"}}}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "vocabulary")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "r1" || got[1].ID != "r2" || got[2].ID != "r0" {
		t.Fatalf("rows = %v, want insertion order", got)
	}
	if !reflect.DeepEqual(got[1].Cells, rows[1].Cells) {
		t.Errorf("cells = %v", got[1].Cells)
	}

	other, err := s.Load(ctx, "notes")
	if err != nil || len(other) != 0 {
		t.Errorf("other table: %v, %v", other, err)
	}
}

func TestStore_UpdateMergesCells(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.Insert(ctx, "t", []types.Row{{ID: "r1", Cells: map[string]string{"a": "1", "b": "2"}}})

	if err := s.Update(ctx, "t", []types.Row{{ID: "r1", Cells: map[string]string{"b": "3"}}}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Load(ctx, "t")
	if want := map[string]string{"a": "1", "b": "3"}; !reflect.DeepEqual(got[0].Cells, want) {
		t.Errorf("cells = %v, want %v", got[0].Cells, want)
	}

	err := s.Update(ctx, "t", []types.Row{{ID: "missing", Cells: map[string]string{"a": "x"}}})
	if tderrors.GetCode(err) != tderrors.CodeSaveFailed || !tderrors.IsRetryable(err) {
		t.Errorf("missing row: %v", err)
	}
}

func TestStore_DuplicateInsertRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.Insert(ctx, "t", []types.Row{{ID: "r1", Cells: map[string]string{}}})

	err := s.Insert(ctx, "t", []types.Row{{ID: "r2", Cells: map[string]string{}}, {ID: "r1", Cells: map[string]string{}}})
	if err == nil {
		t.Fatal("duplicate id should fail")
	}
	got, _ := s.Load(ctx, "t")
	if len(got) != 1 {
		t.Errorf("failed insert must not leave rows behind, got %v", got)
	}
}

func TestStore_ReplaceAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.Insert(ctx, "t", []types.Row{{ID: "a", Cells: map[string]string{}}, {ID: "b", Cells: map[string]string{}}})

	if err := s.Replace(ctx, "t", []types.Row{{ID: "c", Cells: map[string]string{"x": "1"}}, {ID: "d", Cells: map[string]string{}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "t", []string{"d", "zz"}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Load(ctx, "t")
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("rows = %v", got)
	}
}

func TestWriter_SavesTableChanges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.Insert(ctx, "people", []types.Row{{ID: "r1", Cells: map[string]string{"name": "Alice", "age": "30"}}})

	cols := []types.Column{{ID: "name", Type: types.ColumnText}, {ID: "age", Type: types.ColumnNumber}}
	source, _ := s.Load(ctx, "people")
	tbl, err := table.NewEditTable[types.Record](cols, source)
	if err != nil {
		t.Fatal(err)
	}
	tbl.UpdateCell("r1", "age", "31")

	w := s.Writer("people")
	if _, err := tbl.Save(ctx, w); err != nil {
		t.Fatal(err)
	}
	refreshed, _ := s.Load(ctx, "people")
	if err := tbl.SetSource(refreshed); err != nil {
		t.Fatal(err)
	}
	if tbl.HasUnsavedChanges() {
		t.Errorf("diffs should clear after the source refresh, got %v", tbl.Diffs())
	}

	err = w.CreateRows(ctx, []table.Change[types.Record]{{RowID: "r2", Cells: map[string]string{"name": "Bob", "age": "25"}}})
	if err != nil {
		t.Fatal(err)
	}
	all, _ := s.Load(ctx, "people")
	if len(all) != 2 || all[1].Cells["name"] != "Bob" {
		t.Errorf("rows = %v", all)
	}
}
