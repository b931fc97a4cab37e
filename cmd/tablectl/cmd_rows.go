package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coachgrid/tabledit/internal/normalize"
	"github.com/coachgrid/tabledit/internal/schema"
	"github.com/coachgrid/tabledit/internal/table"
	"github.com/coachgrid/tabledit/internal/validation"
	"github.com/coachgrid/tabledit/pkg/types"
)

func newNormalizeCmd(opts *rootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "normalize [file|-]",
		Short: "Normalize tab-separated rows to the canonical cell format",
		Long: `Reads tab-separated rows whose cells follow the definition's column
order and writes them back normalized. Cells that cannot be normalized are
kept as typed and reported on stderr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := opts.loadDefinition()
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			grid := table.ParseClipboard(text)
			failed := 0
			for i, row := range grid {
				for j := range row {
					if j >= len(def.Columns) {
						break
					}
					col := def.Columns[j]
					v, err := normalize.Normalize(row[j], col)
					if err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "line %d, %s: %v\n", i+1, col.ID, err)
						continue
					}
					row[j] = v
				}
			}

			fmt.Fprint(cmd.OutOrStdout(), table.FormatClipboard(grid))
			if strict && failed > 0 {
				return fmt.Errorf("%d cells could not be normalized", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any cell cannot be normalized")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var header bool

	cmd := &cobra.Command{
		Use:   "validate [file|-]",
		Short: "Validate tab-separated rows and print the validation state as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := opts.loadDefinition()
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			rows, err := gridRows(def, table.ParseClipboard(text), header)
			if err != nil {
				return err
			}
			state, err := validateRows(def, rows)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(state); err != nil {
				return err
			}
			if !state.IsValid {
				return fmt.Errorf("%d validation errors", state.Count())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&header, "header", false, "first line names the column of each field")
	return cmd
}

// gridRows turns parsed lines into rows with ids row-1, row-2 and so on.
// Without a header, fields follow the definition's column order.
func gridRows(def *schema.Definition, grid [][]string, header bool) ([]types.Row, error) {
	order := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		order[i] = c.ID
	}

	if header {
		if len(grid) == 0 {
			return nil, fmt.Errorf("missing header line")
		}
		known := make(map[string]bool, len(order))
		for _, id := range order {
			known[id] = true
		}
		for _, id := range grid[0] {
			if !known[id] {
				return nil, fmt.Errorf("unknown column %q in header", id)
			}
		}
		order = grid[0]
		grid = grid[1:]
	}

	rows := make([]types.Row, 0, len(grid))
	for i, line := range grid {
		cells := make(map[string]string, len(def.Columns))
		for _, c := range def.Columns {
			cells[c.ID] = ""
		}
		for j, v := range line {
			if j < len(order) {
				cells[order[j]] = v
			}
		}
		rows = append(rows, types.Row{ID: fmt.Sprintf("row-%d", i+1), Cells: cells})
	}
	return rows, nil
}

func validateRows(def *schema.Definition, rows []types.Row) (validation.State, error) {
	v, err := def.Validator()
	if err != nil {
		return validation.State{}, err
	}
	if v == nil {
		return validation.Valid(), nil
	}
	return v.ValidateRows(rows), nil
}
