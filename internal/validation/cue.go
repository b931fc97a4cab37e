package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
)

// CUESchema validates entities against a CUE constraint. The entity is
// encoded as JSON, null fields are dropped so optional constraints apply, and
// the result is unified with the schema and required to be concrete.
//
//	name: string & !=""
//	age?: number & >=0 & <=130
//	end?: >=start
type CUESchema[T any] struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewCUESchema compiles src.
func NewCUESchema[T any](src string) (*CUESchema[T], error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(src, cue.Filename("row_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, tderrors.Wrap(tderrors.ErrCategoryConfig, tderrors.CodeInvalidSchema,
			"compile row schema", err)
	}
	return &CUESchema[T]{ctx: ctx, schema: schema}, nil
}

// ValidateEntity implements RowSchema.
func (s *CUESchema[T]) ValidateEntity(entity T) []FieldError {
	data, err := encodeEntity(entity)
	if err != nil {
		return []FieldError{{Message: err.Error()}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	val := s.ctx.CompileBytes(data)
	if err := val.Err(); err != nil {
		return []FieldError{{Message: err.Error()}}
	}
	err = s.schema.Unify(val).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var out []FieldError
	seen := make(map[string]bool)
	for _, e := range cueerrors.Errors(err) {
		path := strings.Join(e.Path(), ".")
		if seen[path] {
			continue
		}
		seen[path] = true
		format, args := e.Msg()
		out = append(out, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	return out
}

// encodeEntity renders entity as JSON without null members.
func encodeEntity(entity any) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if dec.Decode(&obj) != nil {
		return data, nil
	}
	for k, v := range obj {
		if v == nil {
			delete(obj, k)
		}
	}
	return json.Marshal(obj)
}
