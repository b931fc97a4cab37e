// Package schema loads table definitions and checks them before any table
// state is built on top of them.
package schema

import (
	"fmt"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/pkg/types"
)

// ValidateColumns checks a column list: ids must be non-empty and unique,
// types known, select columns need options and numeric bounds must be ordered.
// The row-level error key and the ghost row id are reserved.
func ValidateColumns(cols []types.Column) error {
	if len(cols) == 0 {
		return tderrors.NewConfigError(tderrors.CodeInvalidColumn, "table must have at least one column")
	}

	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		if c.ID == "" {
			return tderrors.NewConfigError(tderrors.CodeInvalidColumn,
				fmt.Sprintf("column %d: id cannot be empty", i))
		}
		if c.ID == types.RootErrorKey || c.ID == types.GhostRowID {
			return tderrors.NewConfigError(tderrors.CodeInvalidColumn,
				fmt.Sprintf("column id %q is reserved", c.ID))
		}
		if seen[c.ID] {
			return tderrors.NewConfigError(tderrors.CodeDuplicateColumn,
				fmt.Sprintf("duplicate column id: %s", c.ID))
		}
		seen[c.ID] = true

		if !c.Type.Valid() {
			return tderrors.NewConfigError(tderrors.CodeInvalidColumn,
				fmt.Sprintf("invalid column type %q for column %q", c.Type, c.ID))
		}
		if (c.Type == types.ColumnSelect || c.Type == types.ColumnMultiSelect) && len(c.Options) == 0 {
			return tderrors.NewConfigError(tderrors.CodeInvalidColumn,
				fmt.Sprintf("column %q: %s needs at least one option", c.ID, c.Type))
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return tderrors.NewConfigError(tderrors.CodeInvalidColumn,
				fmt.Sprintf("column %q: min %v exceeds max %v", c.ID, *c.Min, *c.Max))
		}
	}
	return nil
}

// CheckRowIDs rejects empty or duplicate row ids. allowGhost permits the
// ghost row id, which create-mode tables strip before use.
func CheckRowIDs(rows []types.Row, allowGhost bool) error {
	seen := make(map[string]bool, len(rows))
	for i, r := range rows {
		switch {
		case r.ID == "":
			return tderrors.NewConfigError(tderrors.CodeDuplicateRow,
				fmt.Sprintf("row %d: id cannot be empty", i))
		case r.IsGhost():
			if !allowGhost {
				return tderrors.NewConfigError(tderrors.CodeGhostCollision,
					fmt.Sprintf("row %d: id %q is reserved for the ghost row", i, r.ID))
			}
			continue
		case seen[r.ID]:
			return tderrors.NewConfigError(tderrors.CodeDuplicateRow,
				fmt.Sprintf("duplicate row id: %s", r.ID))
		}
		seen[r.ID] = true
	}
	return nil
}
