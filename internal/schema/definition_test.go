package schema

import (
	"os"
	"path/filepath"
	"testing"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/pkg/types"
)

const vocabularyYAML = `
name: vocabulary
columns:
  - id: word
    type: text
    validate: required
  - id: level
    type: select
    options:
      - value: a1
        label: Beginner
      - value: b1
  - id: reviews
    type: number
    min: 0
  - id: due
    type: date
    date_format:
      inputs: ["MM/DD/YYYY"]
row_schema: |
  word: string & !=""
`

const notesYAML = `
name: notes
columns:
  - id: body
    type: textarea
`

func TestParse(t *testing.T) {
	d, err := Parse([]byte(vocabularyYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Name != "vocabulary" || len(d.Columns) != 4 {
		t.Fatalf("unexpected definition: %+v", d)
	}
	if d.Columns[1].Options[0].Label != "Beginner" {
		t.Errorf("option label not decoded: %+v", d.Columns[1].Options)
	}
	if d.Columns[2].Min == nil || *d.Columns[2].Min != 0 {
		t.Errorf("min not decoded: %v", d.Columns[2].Min)
	}
	if d.Columns[3].DateFormat == nil || d.Columns[3].DateFormat.Inputs[0] != "MM/DD/YYYY" {
		t.Errorf("date format not decoded: %+v", d.Columns[3].DateFormat)
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("name: broken\ncolumns:\n  - id: a\n    type: text\n  - id: a\n    type: text\n"))
	if got := tderrors.GetCode(err); got != tderrors.CodeDuplicateColumn {
		t.Errorf("code = %q, want %q", got, tderrors.CodeDuplicateColumn)
	}

	_, err = Parse([]byte("name: [unclosed"))
	if !tderrors.IsConfigError(err) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestDefinition_Validator(t *testing.T) {
	d, err := Parse([]byte(vocabularyYAML))
	if err != nil {
		t.Fatal(err)
	}
	v, err := d.Validator()
	if err != nil {
		t.Fatalf("Validator: %v", err)
	}
	if !v.HasRowSchema() {
		t.Error("row schema should be wired")
	}

	errs := v.ValidateRow(map[string]string{"word": "", "reviews": "-2", "due": "01/15/2024"})
	if errs["word"] != "word: is required" {
		t.Errorf("word error = %q", errs["word"])
	}
	if errs["reviews"] != "reviews: must be at least 0" {
		t.Errorf("reviews error = %q", errs["reviews"])
	}
	if _, ok := errs["due"]; ok {
		t.Errorf("due should be valid, got %q", errs["due"])
	}

	notes, err := Parse([]byte(notesYAML))
	if err != nil {
		t.Fatal(err)
	}
	nv, err := notes.Validator()
	if err != nil || nv != nil {
		t.Errorf("table without schemas: got %v, %v", nv, err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("vocabulary.yaml", vocabularyYAML)
	write("notes.yml", notesYAML)
	write("README.md", "ignored")

	r, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "notes" || names[1] != "vocabulary" {
		t.Errorf("names = %v", names)
	}

	if _, err := r.Get("missing"); tderrors.GetCode(err) != tderrors.CodeTableNotFound {
		t.Errorf("missing table: %v", err)
	}
	if err := r.Register(&Definition{Name: "notes", Columns: []types.Column{{ID: "x", Type: types.ColumnText}}}); err == nil {
		t.Error("duplicate table name should fail")
	}
}
