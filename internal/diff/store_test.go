package diff

import (
	"errors"
	"reflect"
	"testing"

	"github.com/coachgrid/tabledit/pkg/types"
)

func sourceRows() []types.Row {
	return []types.Row{
		{ID: "r1", Cells: map[string]string{"name": "Alice", "age": "30"}},
		{ID: "r2", Cells: map[string]string{"name": "Bob", "age": "25"}},
		{ID: "r3", Cells: map[string]string{"name": "Carla", "age": "41"}},
	}
}

func TestStore_UpdateDiffAndRevert(t *testing.T) {
	s := NewStore(sourceRows(), []string{"name", "age"})

	if err := s.UpdateDiff("r1", "age", "31"); err != nil {
		t.Fatal(err)
	}
	if got := s.DirtyRowIDs(); !reflect.DeepEqual(got, []string{"r1"}) {
		t.Fatalf("dirty = %v, want [r1]", got)
	}
	if got := s.Diffs()["r1"]["age"]; got != "31" {
		t.Errorf("diff = %q, want 31", got)
	}

	if err := s.UpdateDiff("r1", "age", "30"); err != nil {
		t.Fatal(err)
	}
	if got := s.DirtyRowIDs(); len(got) != 0 {
		t.Errorf("reverting should leave no dirty rows, got %v", got)
	}
	if _, ok := s.Diffs()["r1"]; ok {
		t.Error("row entry should be removed once empty")
	}
}

func TestStore_RevertOneOfSeveralCells(t *testing.T) {
	s := NewStore(sourceRows(), []string{"name", "age"})
	s.UpdateDiff("r2", "name", "Robert")
	s.UpdateDiff("r2", "age", "26")
	s.UpdateDiff("r2", "age", "25")

	want := types.Diffs{"r2": {"name": "Robert"}}
	if got := s.Diffs(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStore_UpdateDiffErrors(t *testing.T) {
	s := NewStore(sourceRows(), []string{"name"})
	if err := s.UpdateDiff("nope", "name", "x"); !errors.Is(err, types.ErrUnknownRow) {
		t.Errorf("unknown row: got %v", err)
	}
	if err := s.UpdateDiff("r1", "age", "99"); !errors.Is(err, types.ErrColumnNotEditable) {
		t.Errorf("non-editable column: got %v", err)
	}
	if len(s.Diffs()) != 0 {
		t.Error("failed updates must not record diffs")
	}
}

func TestStore_PublishedMapsAreNotMutated(t *testing.T) {
	s := NewStore(sourceRows(), []string{"name", "age"})
	s.UpdateDiff("r1", "age", "31")
	before := s.Diffs()
	snapshot := before.Clone()

	s.UpdateDiff("r1", "name", "Alicia")
	s.UpdateDiff("r2", "age", "99")
	s.UpdateDiff("r1", "age", "30")

	if !reflect.DeepEqual(before, snapshot) {
		t.Errorf("earlier diffs map changed: %v, want %v", before, snapshot)
	}
}

func TestStore_SetRowsViaDiffs(t *testing.T) {
	s := NewStore(sourceRows(), []string{"name", "age"})
	s.UpdateDiff("r3", "name", "Carl")

	rows := []types.Row{
		{ID: "r1", Cells: map[string]string{"name": "Alice", "age": "30"}},
		{ID: "r2", Cells: map[string]string{"name": "Bob", "age": "52"}},
		{ID: "new", Cells: map[string]string{"name": "Nobody", "age": "1"}},
	}
	s.SetRowsViaDiffs(rows)

	want := types.Diffs{"r2": {"age": "52"}}
	if got := s.Diffs(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStore_SetRowsViaDiffsIgnoresNonEditable(t *testing.T) {
	s := NewStore(sourceRows(), []string{"name"})
	s.SetRowsViaDiffs([]types.Row{{ID: "r1", Cells: map[string]string{"name": "Alice", "age": "99"}}})
	if len(s.Diffs()) != 0 {
		t.Errorf("non-editable columns must not be diffed, got %v", s.Diffs())
	}
}

func TestStore_ClearDiffs(t *testing.T) {
	s := NewStore(sourceRows(), []string{"name", "age"})
	s.UpdateDiff("r1", "age", "31")
	s.UpdateDiff("r2", "age", "26")
	s.ClearDiffs()
	if len(s.DirtyRowIDs()) != 0 {
		t.Error("ClearDiffs should remove everything")
	}
}

func TestStore_CleanupAfterSourceRefresh(t *testing.T) {
	s := NewStore(sourceRows(), []string{"name", "age"})
	s.UpdateDiff("r1", "age", "31")
	s.UpdateDiff("r2", "name", "Robert")
	s.UpdateDiff("r3", "age", "42")

	// Save landed for r1 and r2's row was deleted upstream.
	refreshed := []types.Row{
		{ID: "r1", Cells: map[string]string{"name": "Alice", "age": "31"}},
		{ID: "r3", Cells: map[string]string{"name": "Carla", "age": "41"}},
	}
	s.SetSource(refreshed)

	want := types.Diffs{"r3": {"age": "42"}}
	if got := s.Diffs(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := s.DirtyRowIDs(); !reflect.DeepEqual(got, []string{"r3"}) {
		t.Errorf("dirty = %v, want [r3]", got)
	}
}

func TestStore_Restore(t *testing.T) {
	s := NewStore(sourceRows(), []string{"name", "age"})
	s.Restore(types.Diffs{"r1": {"age": "30"}, "r2": {"age": "27"}, "gone": {"age": "1"}})
	want := types.Diffs{"r2": {"age": "27"}}
	if got := s.Diffs(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCleanup_ReturnsSameMapWhenClean(t *testing.T) {
	src := sourceRows()
	index := map[string]int{"r1": 0, "r2": 1, "r3": 2}
	d := types.Diffs{"r1": {"age": "31"}}
	got := Cleanup(d, src, index)
	if reflect.ValueOf(got).Pointer() != reflect.ValueOf(d).Pointer() {
		t.Error("clean input should be returned as is")
	}
}

func TestFingerprint(t *testing.T) {
	a := sourceRows()
	b := sourceRows()
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("equal row sets must hash equally")
	}
	b[1].Cells["age"] = "26"
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("changed cell should change the fingerprint")
	}
	c := sourceRows()
	c[0], c[1] = c[1], c[0]
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("row order is part of the fingerprint")
	}
}
