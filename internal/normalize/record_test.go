package normalize

import (
	"reflect"
	"testing"
	"time"

	"github.com/coachgrid/tabledit/pkg/types"
)

var studentColumns = []types.Column{
	{ID: "name", Type: types.ColumnText},
	{ID: "age", Type: types.ColumnNumber},
	{ID: "active", Type: types.ColumnBoolean, BooleanFormat: types.BoolYesNo},
	{ID: "joined", Type: types.ColumnDate, DateFormat: &types.DateFormat{Output: types.DateOutputISO}},
	{ID: "level", Type: types.ColumnSelect, Options: []types.Option{{Value: "A1"}, {Value: "B2"}}},
}

type student struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Active bool   `json:"active"`
	Joined string `json:"joined"`
	Level  string `json:"level"`
}

func TestToRecord(t *testing.T) {
	rec, failures := ToRecord(map[string]string{
		"name": "Bob", "age": "25", "active": "yes", "joined": "2024-01-15", "level": "B2",
	}, studentColumns)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	want := types.Record{"name": "Bob", "age": 25.0, "active": true, "joined": "2024-01-15", "level": "B2"}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("got %#v, want %#v", rec, want)
	}
}

func TestToRecord_Failures(t *testing.T) {
	rec, failures := ToRecord(map[string]string{
		"name": "", "age": "thirty", "active": "perhaps", "joined": "soon", "level": "C1",
	}, studentColumns)

	for _, id := range []string{"age", "active", "joined", "level"} {
		if failures[id] == "" {
			t.Errorf("expected a failure for %q", id)
		}
		if rec[id] != nil {
			t.Errorf("failing column %q should be nil, got %v", id, rec[id])
		}
	}
	if _, ok := failures["name"]; ok {
		t.Error("empty text is not a conversion failure")
	}
	if rec["name"] != nil {
		t.Error("empty cell should map to nil")
	}
}

func TestToRecord_DateOutputs(t *testing.T) {
	base := types.Column{ID: "d", Type: types.ColumnDate}
	cells := map[string]string{"d": "2024-01-15"}
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	rec, _ := ToRecord(cells, []types.Column{base})
	if got, ok := rec["d"].(time.Time); !ok || !got.Equal(day) {
		t.Errorf("default output should be time.Time, got %#v", rec["d"])
	}

	unix := base
	unix.DateFormat = &types.DateFormat{Output: types.DateOutputUnix}
	rec, _ = ToRecord(cells, []types.Column{unix})
	if rec["d"] != day.Unix() {
		t.Errorf("unix output = %#v, want %d", rec["d"], day.Unix())
	}
}

func TestFromRecord(t *testing.T) {
	cells, err := FromRecord(types.Record{
		"name": "Bob", "age": 25, "active": true, "joined": time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}, studentColumns)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"name": "Bob", "age": "25", "active": "yes", "joined": "2024-01-15", "level": ""}
	if !reflect.DeepEqual(cells, want) {
		t.Errorf("got %v, want %v", cells, want)
	}
}

func TestFromRecord_TypeMismatch(t *testing.T) {
	_, err := FromRecord(types.Record{"age": []int{1}}, studentColumns)
	if err == nil {
		t.Error("expected an error rendering a slice into a number column")
	}
}

func TestJSONMapper_RoundTrip(t *testing.T) {
	m := JSONMapper[student]{}

	cells, err := EntityToCells(student{Name: "Bob", Age: 25, Active: true, Joined: "2024-01-15", Level: "A1"}, studentColumns, m)
	if err != nil {
		t.Fatal(err)
	}
	if cells["age"] != "25" || cells["active"] != "yes" || cells["joined"] != "2024-01-15" {
		t.Errorf("unexpected cells %v", cells)
	}

	got, err := RowToEntity(map[string]string{
		"name": " Bob ", "age": "25.0", "active": "Y", "joined": "1/15/2024", "level": "a1",
	}, studentColumns, m)
	if err != nil {
		t.Fatal(err)
	}
	want := student{Name: "Bob", Age: 25, Active: true, Joined: "2024-01-15", Level: "A1"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestRowToEntity_Errors(t *testing.T) {
	m := JSONMapper[student]{}
	if _, err := RowToEntity(map[string]string{"joined": "foo"}, studentColumns, m); err == nil {
		t.Error("unparseable date must fail at save time")
	}
	if _, err := RowToEntity(map[string]string{"age": "old"}, studentColumns, m); err == nil {
		t.Error("non-numeric age must fail at save time")
	}
}
