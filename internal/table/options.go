// Package table composes the displayed row state of editable tables.
//
// EditTable overlays a diff store on server-supplied source rows; it never
// holds a second copy of row truth. CreateTable keeps an explicit row list
// for freeform entry that always ends in a single ghost row. Row slices and
// cell maps returned by either table are shared and must not be modified;
// every change replaces them.
//
// Tables are not safe for concurrent use.
package table

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/coachgrid/tabledit/internal/normalize"
	"github.com/coachgrid/tabledit/internal/validation"
)

// ErrNoActiveCell is returned by operations anchored at the focused cell
// when no cell is focused.
var ErrNoActiveCell = errors.New("table: no active cell")

// DeriveFunc computes derived cells from a merged row. The returned cells
// are layered over the row; cells must not be modified.
type DeriveFunc func(cells map[string]string) map[string]string

// Change is one row handed to a save collaborator.
type Change[T any] struct {
	RowID  string
	Entity T

	// Cells holds the normalized values of the cells being written: the
	// changed cells in edit mode, every cell in create mode.
	Cells map[string]string
}

// Updater persists edits of existing rows.
type Updater[T any] interface {
	UpdateRows(ctx context.Context, changes []Change[T]) error
}

// Creator persists new rows.
type Creator[T any] interface {
	CreateRows(ctx context.Context, changes []Change[T]) error
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc[T any] func(ctx context.Context, changes []Change[T]) error

func (f UpdaterFunc[T]) UpdateRows(ctx context.Context, changes []Change[T]) error {
	return f(ctx, changes)
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc[T any] func(ctx context.Context, changes []Change[T]) error

func (f CreatorFunc[T]) CreateRows(ctx context.Context, changes []Change[T]) error {
	return f(ctx, changes)
}

// PasteResult summarizes a paste.
type PasteResult struct {
	RowsAffected  int  `json:"rows_affected"`
	CellsAffected int  `json:"cells_affected"`
	RowsCreated   int  `json:"rows_created,omitempty"`
	Truncated     bool `json:"truncated,omitempty"`
}

type options[T any] struct {
	mapper          normalize.Mapper[T]
	validator       *validation.Validator[T]
	derive          DeriveFunc
	normalizeOnEdit bool
	newID           func() string
}

// Option configures a table.
type Option[T any] func(*options[T])

// WithMapper sets the entity mapper. The default maps through JSON.
func WithMapper[T any](m normalize.Mapper[T]) Option[T] {
	return func(o *options[T]) { o.mapper = m }
}

// WithValidator sets the validator used for validation state and save gating.
func WithValidator[T any](v *validation.Validator[T]) Option[T] {
	return func(o *options[T]) { o.validator = v }
}

// WithDerive recomputes derived cells of every displayed row in edit mode.
func WithDerive[T any](fn DeriveFunc) Option[T] {
	return func(o *options[T]) { o.derive = fn }
}

// WithNormalizeOnEdit stores edited and pasted values in lenient
// normalized form instead of verbatim.
func WithNormalizeOnEdit[T any]() Option[T] {
	return func(o *options[T]) { o.normalizeOnEdit = true }
}

// WithIDGenerator sets how create-mode row ids are generated.
func WithIDGenerator[T any](fn func() string) Option[T] {
	return func(o *options[T]) { o.newID = fn }
}

func buildOptions[T any](opts []Option[T]) options[T] {
	o := options[T]{
		mapper: normalize.JSONMapper[T]{},
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
