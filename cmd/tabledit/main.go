// Package main implements the tabledit server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/coachgrid/tabledit/internal/app"
	"github.com/coachgrid/tabledit/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		defsDir     string
		httpAddr    string
		grpcAddr    string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&defsDir, "definitions", "", "Directory of table definition files")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP API address")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC health address")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tabledit - editable table sessions over a shared source\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tabledit [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TABLEDIT_DATA_DIR         Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  TABLEDIT_HTTP_ADDR        HTTP API address\n")
		fmt.Fprintf(os.Stderr, "  TABLEDIT_SESSION_TTL      Idle session lifetime\n")
		fmt.Fprintf(os.Stderr, "  TABLEDIT_STORAGE_TYPE     Snapshot storage (none, local, s3)\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("tabledit version %s (commit: %s)\n", version, commit)
		return
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if defsDir != "" {
		cfg.DefinitionsDir = defsDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if grpcAddr != "" {
		cfg.GRPC.Addr = grpcAddr
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	log.Printf("tabledit %s: data=%s definitions=%s storage=%s",
		version, cfg.DataDir, cfg.DefinitionsDir, cfg.Storage.Type)

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
	if err := application.Wait(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file if any and applies the environment on top.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}
