package schema

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/internal/normalize"
	"github.com/coachgrid/tabledit/internal/validation"
	"github.com/coachgrid/tabledit/pkg/types"
)

// Definition describes one table: its columns and an optional CUE row schema.
//
//	name: vocabulary
//	columns:
//	  - id: word
//	    type: text
//	    validate: required
//	  - id: level
//	    type: select
//	    options: [{value: a1}, {value: a2}]
//	row_schema: |
//	  word: string & !=""
type Definition struct {
	Name      string         `yaml:"name" json:"name"`
	Columns   []types.Column `yaml:"columns" json:"columns"`
	RowSchema string         `yaml:"row_schema,omitempty" json:"row_schema,omitempty"`
}

// Validate checks the definition.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return tderrors.NewConfigError(tderrors.CodeInvalidSchema, "table name cannot be empty")
	}
	if err := ValidateColumns(d.Columns); err != nil {
		return fmt.Errorf("table %q: %w", d.Name, err)
	}
	return nil
}

// HasSchemas reports whether any validation is declared.
func (d *Definition) HasSchemas() bool {
	if strings.TrimSpace(d.RowSchema) != "" {
		return true
	}
	for _, c := range d.Columns {
		if c.HasSchema() {
			return true
		}
	}
	return false
}

// Validator builds the record validator for the table, or returns nil when
// the table declares no schema at all.
func (d *Definition) Validator() (*validation.Validator[types.Record], error) {
	if !d.HasSchemas() {
		return nil, nil
	}
	var opts []validation.Option[types.Record]
	if strings.TrimSpace(d.RowSchema) != "" {
		cs, err := validation.NewCUESchema[types.Record](d.RowSchema)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", d.Name, err)
		}
		opts = append(opts, validation.WithRowSchema[types.Record](cs))
	}
	return validation.New[types.Record](d.Columns, normalize.RecordMapper{}, opts...)
}

// Parse decodes and validates a YAML definition.
func Parse(data []byte) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, tderrors.Wrap(tderrors.ErrCategoryConfig, tderrors.CodeInvalidSchema, "parse table definition", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Registry holds the loaded table definitions.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*Definition)}
}

// LoadDir loads every *.yaml and *.yml file in dir.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions dir: %w", err)
	}

	r := NewRegistry()
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		d, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if err := r.Register(d); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
	}
	log.Printf("schema: loaded %d table definitions from %s", len(r.tables), dir)
	return r, nil
}

// Register adds a validated definition. Names must be unique.
func (r *Registry) Register(d *Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[d.Name]; ok {
		return tderrors.NewConfigError(tderrors.CodeInvalidSchema,
			fmt.Sprintf("table %q defined twice", d.Name))
	}
	r.tables[d.Name] = d
	return nil
}

// Get returns the definition of a table.
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tables[name]
	if !ok {
		return nil, tderrors.NewSourceError(tderrors.CodeTableNotFound,
			fmt.Sprintf("unknown table %q", name), nil)
	}
	return d, nil
}

// Names returns the table names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for n := range r.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
