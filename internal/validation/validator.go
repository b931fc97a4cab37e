// Package validation composes column-level and row-level schemas into a
// per-row error map.
//
// Rows are validated in their normalized, typed form: cells are normalized,
// converted to a typed record and mapped to the domain entity before any
// schema sees them. Column-level and row-level checks always both run; when
// they disagree on a column the column-level message is kept.
package validation

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/internal/normalize"
	"github.com/coachgrid/tabledit/pkg/types"
)

// Validator validates table rows for entities of type T.
// It is safe for concurrent use once built.
type Validator[T any] struct {
	cols     []types.Column
	mapper   normalize.Mapper[T]
	row      RowSchema[T]
	validate *validator.Validate
}

// Option configures a Validator.
type Option[T any] func(*Validator[T])

// WithRowSchema adds a whole-record schema.
func WithRowSchema[T any](s RowSchema[T]) Option[T] {
	return func(v *Validator[T]) { v.row = s }
}

// WithValidate replaces the validator instance used for column tags, for
// callers that register their own validations.
func WithValidate[T any](vd *validator.Validate) Option[T] {
	return func(v *Validator[T]) { v.validate = vd }
}

// New builds a validator. It fails with a configuration error when no column
// carries a schema and no row schema is given, or when a column tag does not
// parse.
func New[T any](cols []types.Column, mapper normalize.Mapper[T], opts ...Option[T]) (*Validator[T], error) {
	v := &Validator[T]{
		cols:     cols,
		mapper:   mapper,
		validate: NewValidate(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.mapper == nil {
		v.mapper = normalize.JSONMapper[T]{}
	}

	hasColumnSchema := false
	for _, c := range cols {
		if !c.HasSchema() {
			continue
		}
		hasColumnSchema = true
		if err := checkTag(v.validate, c.Validate); err != nil {
			return nil, tderrors.Wrap(tderrors.ErrCategoryConfig, tderrors.CodeInvalidSchema,
				fmt.Sprintf("column %q: bad validate tag %q", c.ID, c.Validate), err)
		}
	}
	if !hasColumnSchema && v.row == nil {
		return nil, tderrors.NewConfigError(tderrors.CodeNoSchemas,
			"validator needs at least one column schema or a row schema")
	}
	return v, nil
}

// HasRowSchema reports whether a whole-record schema is configured.
func (v *Validator[T]) HasRowSchema() bool {
	return v.row != nil
}

// Columns returns the columns the validator was built for.
func (v *Validator[T]) Columns() []types.Column {
	return v.cols
}

// ValidateRow returns the error map of one row, or nil when it is valid.
func (v *Validator[T]) ValidateRow(cells map[string]string) map[string]string {
	norm := normalize.NormalizeRowLenient(cells, v.cols)
	rec, failures := normalize.ToRecord(norm, v.cols)

	var errs map[string]string
	set := func(key, msg string) {
		if errs == nil {
			errs = make(map[string]string)
		}
		if _, taken := errs[key]; !taken {
			errs[key] = msg
		}
	}

	for _, c := range v.cols {
		if msg, ok := failures[c.ID]; ok {
			set(c.ID, c.ID+": "+msg)
			continue
		}
		if msg := v.checkColumn(c, rec[c.ID]); msg != "" {
			set(c.ID, c.ID+": "+msg)
		}
	}

	if v.row != nil {
		entity, err := v.mapper.ToEntity(rec)
		if err != nil {
			set(types.RootErrorKey, err.Error())
		} else {
			var root []string
			for _, fe := range v.row.ValidateEntity(entity) {
				key := columnKey(fe.Path)
				if key == "" {
					root = append(root, fe.Message)
					continue
				}
				set(key, key+": "+fe.Message)
			}
			if len(root) > 0 {
				set(types.RootErrorKey, strings.Join(root, "; "))
			}
		}
	}
	return errs
}

// ValidateRows validates every row.
func (v *Validator[T]) ValidateRows(rows []types.Row) State {
	st := Valid()
	for _, r := range rows {
		if errs := v.ValidateRow(r.Cells); len(errs) > 0 {
			st.Errors[r.ID] = errs
			st.IsValid = false
		}
	}
	return st
}

// Entity runs the strict save-time pipeline for one row.
func (v *Validator[T]) Entity(cells map[string]string) (T, error) {
	return normalize.RowToEntity(cells, v.cols, v.mapper)
}

// checkColumn applies numeric bounds and the validate tag to a typed value.
func (v *Validator[T]) checkColumn(c types.Column, value any) string {
	if f, ok := value.(float64); ok {
		if c.Min != nil && f < *c.Min {
			return "must be at least " + formatBound(*c.Min)
		}
		if c.Max != nil && f > *c.Max {
			return "must be at most " + formatBound(*c.Max)
		}
	}
	if c.Validate == "" {
		return ""
	}
	err := v.validate.Var(pointerTo(value), c.Validate)
	if err == nil {
		return ""
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return describe(verrs[0])
	}
	return err.Error()
}

// pointerTo wraps typed values in a pointer so that "required" means "the
// cell is not empty" rather than "the value is not zero": a 0 or false
// entered by the user still satisfies it.
func pointerTo(value any) any {
	switch x := value.(type) {
	case nil:
		return (*string)(nil)
	case string:
		return &x
	case float64:
		return &x
	case bool:
		return &x
	case int64:
		return &x
	case time.Time:
		return &x
	case []string:
		return &x
	default:
		p := reflect.New(reflect.TypeOf(value))
		p.Elem().Set(reflect.ValueOf(value))
		return p.Interface()
	}
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// checkTag parses a validate tag up front; validator panics on unknown tags.
func checkTag(vd *validator.Validate, tag string) (err error) {
	if tag == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	_ = vd.Var((*string)(nil), tag)
	return nil
}

// columnKey maps a field path such as "address.city" or "tags[0]" to the
// column id it belongs to.
func columnKey(path string) string {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}
