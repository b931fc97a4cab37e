package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coachgrid/tabledit/internal/snapshot"
	"github.com/coachgrid/tabledit/internal/source"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the table's source rows to a new snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			def, err := opts.loadDefinition()
			if err != nil {
				return err
			}
			src, err := source.Open(opts.dbPath)
			if err != nil {
				return err
			}
			defer src.Close()

			rows, err := src.Load(ctx, def.Name)
			if err != nil {
				return err
			}
			store, err := opts.openStorage(ctx)
			if err != nil {
				return err
			}
			snap, err := snapshot.NewWriter(store).Write(ctx, def.Name, def.Columns, rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d rows\n", snap.ID, len(snap.Rows))
			return nil
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot-id>",
		Short: "Replace the table's source rows with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			def, err := opts.loadDefinition()
			if err != nil {
				return err
			}
			store, err := opts.openStorage(ctx)
			if err != nil {
				return err
			}
			snap, err := snapshot.NewReader(store).Read(ctx, def.Name, args[0])
			if err != nil {
				return err
			}

			src, err := source.Open(opts.dbPath)
			if err != nil {
				return err
			}
			defer src.Close()

			if err := src.Replace(ctx, def.Name, snap.Rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows into %s\n", len(snap.Rows), def.Name)
			return nil
		},
	}
}

func newSnapshotsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List the table's snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			def, err := opts.loadDefinition()
			if err != nil {
				return err
			}
			store, err := opts.openStorage(ctx)
			if err != nil {
				return err
			}
			ids, err := snapshot.NewReader(store).List(ctx, def.Name)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
