package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/coachgrid/tabledit/pkg/types"
)

// FieldError is one row-level violation. An empty Path marks an error that
// belongs to the row as a whole.
type FieldError struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// RowSchema validates a whole entity, typically for cross-field constraints.
type RowSchema[T any] interface {
	ValidateEntity(entity T) []FieldError
}

// RowSchemaFunc adapts a plain function to RowSchema.
type RowSchemaFunc[T any] func(entity T) []FieldError

func (f RowSchemaFunc[T]) ValidateEntity(entity T) []FieldError { return f(entity) }

// NewValidate returns a validator instance that reports fields by their json
// names and knows the table-specific validations.
func NewValidate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("nonblank", validateNonBlank)
	return v
}

// validateNonBlank rejects strings made only of whitespace.
func validateNonBlank(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(f.String()) != ""
}

// StructSchema validates struct entities through their `validate` tags, plus
// any extra checks for constraints tags cannot express.
type StructSchema[T any] struct {
	validate *validator.Validate
	checks   []RowSchemaFunc[T]
}

// NewStructSchema creates a struct schema.
func NewStructSchema[T any](checks ...RowSchemaFunc[T]) *StructSchema[T] {
	return &StructSchema[T]{validate: NewValidate(), checks: checks}
}

// ValidateEntity implements RowSchema.
func (s *StructSchema[T]) ValidateEntity(entity T) []FieldError {
	var out []FieldError
	err := s.validate.Struct(entity)

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			out = append(out, FieldError{Path: trimNamespace(fe.Namespace()), Message: describe(fe)})
		}
	case err != nil:
		out = append(out, FieldError{Message: err.Error()})
	}

	for _, check := range s.checks {
		out = append(out, check(entity)...)
	}
	return out
}

// trimNamespace drops the struct type name from "Student.address.city".
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ""
}

// MapSchema validates typed records with one validate tag per column.
type MapSchema struct {
	validate *validator.Validate
	rules    map[string]interface{}
}

// NewMapSchema creates a record schema from column id to tag.
func NewMapSchema(rules map[string]string) *MapSchema {
	r := make(map[string]interface{}, len(rules))
	for k, v := range rules {
		r[k] = v
	}
	return &MapSchema{validate: NewValidate(), rules: r}
}

// ValidateEntity implements RowSchema for types.Record.
func (s *MapSchema) ValidateEntity(rec types.Record) []FieldError {
	data := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		data[k] = pointerTo(v)
	}

	var out []FieldError
	for field, err := range s.validate.ValidateMap(data, s.rules) {
		msg := "is invalid"
		var verrs validator.ValidationErrors
		if e, ok := err.(error); ok && errors.As(e, &verrs) && len(verrs) > 0 {
			msg = describe(verrs[0])
		}
		out = append(out, FieldError{Path: field, Message: msg})
	}
	return out
}
