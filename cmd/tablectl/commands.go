package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/coachgrid/tabledit/internal/schema"
	"github.com/coachgrid/tabledit/internal/storage"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	definition  string
	dbPath      string
	storageDir  string
	s3Bucket    string
	s3Region    string
	s3Endpoint  string
	s3PathStyle bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "tablectl",
		Short:        "Inspect and move table data outside the tabledit server",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.definition, "definition", "d", "", "table definition file (YAML)")
	pf.StringVar(&opts.dbPath, "db", "./data/tabledit/source.db", "source database path")
	pf.StringVar(&opts.storageDir, "storage-dir", "./data/tabledit/snapshots", "local snapshot storage directory")
	pf.StringVar(&opts.s3Bucket, "s3-bucket", "", "store snapshots in this S3 bucket instead of locally")
	pf.StringVar(&opts.s3Region, "s3-region", "", "S3 region")
	pf.StringVar(&opts.s3Endpoint, "s3-endpoint", "", "custom S3 endpoint")
	pf.BoolVar(&opts.s3PathStyle, "s3-path-style", false, "use path-style S3 addressing")

	root.AddCommand(
		newNormalizeCmd(opts),
		newValidateCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newSnapshotsCmd(opts),
	)
	return root
}

func (o *rootOptions) loadDefinition() (*schema.Definition, error) {
	if o.definition == "" {
		return nil, fmt.Errorf("--definition is required")
	}
	data, err := os.ReadFile(o.definition)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return schema.Parse(data)
}

func (o *rootOptions) openStorage(ctx context.Context) (storage.ObjectStorage, error) {
	if o.s3Bucket == "" {
		return storage.NewLocalStorage(o.storageDir)
	}
	cfg := storage.DefaultS3Config()
	if o.s3Region != "" {
		cfg.Region = o.s3Region
	}
	cfg.Endpoint = o.s3Endpoint
	cfg.UsePathStyle = o.s3PathStyle
	return storage.NewS3Storage(ctx, o.s3Bucket, cfg)
}

// readInput reads the named file, or stdin when no file or "-" is given.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}
