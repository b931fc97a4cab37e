// Package config provides configuration for the tabledit service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage types.
const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds the service configuration.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DefinitionsDir holds the table definition YAML files
	DefinitionsDir string `json:"definitions_dir" yaml:"definitions_dir"`

	// SourcePath is the SQLite source-of-truth database
	SourcePath string `json:"source_path" yaml:"source_path"`

	HTTP     HTTPConfig     `json:"http" yaml:"http"`
	GRPC     GRPCConfig     `json:"grpc" yaml:"grpc"`
	Sessions SessionsConfig `json:"sessions" yaml:"sessions"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Shutdown ShutdownConfig `json:"shutdown" yaml:"shutdown"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// GRPCConfig holds the gRPC health server configuration.
type GRPCConfig struct {
	Addr    string `json:"addr" yaml:"addr"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// SessionsConfig holds session manager configuration.
type SessionsConfig struct {
	// TTL is how long an idle session is kept
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// EvictInterval is how often idle sessions are evicted
	EvictInterval time.Duration `json:"evict_interval" yaml:"evict_interval"`

	// MaxSessions caps open sessions (0 = unlimited)
	MaxSessions int `json:"max_sessions" yaml:"max_sessions"`

	// JournalDir holds edit journals; empty resolves under DataDir
	JournalDir string `json:"journal_dir" yaml:"journal_dir"`

	// DisableJournal turns journaling off
	DisableJournal bool `json:"disable_journal" yaml:"disable_journal"`

	// JournalSegmentSizeKB is the journal segment rotation size
	JournalSegmentSizeKB int `json:"journal_segment_size_kb" yaml:"journal_segment_size_kb"`

	// NormalizeOnEdit stores edited values in normalized form
	NormalizeOnEdit bool `json:"normalize_on_edit" yaml:"normalize_on_edit"`

	// StatsWindow is how long column edit statistics are kept
	StatsWindow time.Duration `json:"stats_window" yaml:"stats_window"`
}

// StorageConfig holds snapshot storage configuration.
type StorageConfig struct {
	// Type is the storage type: none, local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// CacheSizeMB is the in-memory snapshot cache budget (0 = disabled)
	CacheSizeMB int `json:"cache_size_mb" yaml:"cache_size_mb"`

	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	Region       string `json:"region" yaml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	Prefix       string `json:"prefix" yaml:"prefix"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
}

// ShutdownConfig holds graceful shutdown timeouts.
type ShutdownConfig struct {
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	DrainTimeout time.Duration `json:"drain_timeout" yaml:"drain_timeout"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/tabledit",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: true,
		},
		Sessions: SessionsConfig{
			TTL:                  30 * time.Minute,
			EvictInterval:        time.Minute,
			JournalSegmentSizeKB: 4096,
			StatsWindow:          24 * time.Hour,
		},
		Storage: StorageConfig{
			Type:        StorageLocal,
			CacheSizeMB: 32,
		},
		Shutdown: ShutdownConfig{
			Timeout:      30 * time.Second,
			DrainTimeout: 15 * time.Second,
		},
	}
}

// Resolve fills paths left empty from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/tabledit"
	}
	if c.DefinitionsDir == "" {
		c.DefinitionsDir = filepath.Join(c.DataDir, "tables")
	}
	if c.SourcePath == "" {
		c.SourcePath = filepath.Join(c.DataDir, "source.db")
	}
	if c.Sessions.JournalDir == "" && !c.Sessions.DisableJournal {
		c.Sessions.JournalDir = filepath.Join(c.DataDir, "journal")
	}
	if c.Storage.Type == StorageLocal && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "snapshots")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.GRPC.Enabled && c.GRPC.Addr == "" {
		return fmt.Errorf("grpc.addr is required when grpc is enabled")
	}

	switch c.Storage.Type {
	case StorageNone, StorageLocal:
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when storage type is s3")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be none, local or s3)", c.Storage.Type)
	}

	if c.Sessions.TTL < 0 || c.Sessions.EvictInterval < 0 {
		return fmt.Errorf("sessions.ttl and sessions.evict_interval must not be negative")
	}
	if c.Storage.CacheSizeMB < 0 {
		return fmt.Errorf("storage.cache_size_mb must not be negative, got %d", c.Storage.CacheSizeMB)
	}
	if c.Sessions.StatsWindow <= 0 {
		return fmt.Errorf("sessions.stats_window must be positive")
	}
	if c.Sessions.MaxSessions < 0 {
		return fmt.Errorf("sessions.max_sessions must not be negative, got %d", c.Sessions.MaxSessions)
	}
	if c.Sessions.JournalSegmentSizeKB < 1 || c.Sessions.JournalSegmentSizeKB > 1024*1024 {
		return fmt.Errorf("sessions.journal_segment_size_kb must be between 1 and 1048576, got %d",
			c.Sessions.JournalSegmentSizeKB)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overrides configuration from TABLEDIT_ environment variables.
// Malformed values are ignored.
func LoadFromEnv(cfg *Config) {
	setString(&cfg.DataDir, "TABLEDIT_DATA_DIR")
	setString(&cfg.DefinitionsDir, "TABLEDIT_DEFINITIONS_DIR")
	setString(&cfg.SourcePath, "TABLEDIT_SOURCE_PATH")

	setString(&cfg.HTTP.Addr, "TABLEDIT_HTTP_ADDR")
	setString(&cfg.GRPC.Addr, "TABLEDIT_GRPC_ADDR")
	setBool(&cfg.GRPC.Enabled, "TABLEDIT_GRPC_ENABLED")

	setDuration(&cfg.Sessions.TTL, "TABLEDIT_SESSION_TTL")
	setDuration(&cfg.Sessions.EvictInterval, "TABLEDIT_SESSION_EVICT_INTERVAL")
	setInt(&cfg.Sessions.MaxSessions, "TABLEDIT_MAX_SESSIONS")
	setString(&cfg.Sessions.JournalDir, "TABLEDIT_JOURNAL_DIR")
	setBool(&cfg.Sessions.DisableJournal, "TABLEDIT_DISABLE_JOURNAL")
	setBool(&cfg.Sessions.NormalizeOnEdit, "TABLEDIT_NORMALIZE_ON_EDIT")

	setString(&cfg.Storage.Type, "TABLEDIT_STORAGE_TYPE")
	setString(&cfg.Storage.Path, "TABLEDIT_STORAGE_PATH")
	setString(&cfg.Storage.S3.Bucket, "TABLEDIT_S3_BUCKET")
	setString(&cfg.Storage.S3.Region, "TABLEDIT_S3_REGION")
	setString(&cfg.Storage.S3.Endpoint, "TABLEDIT_S3_ENDPOINT")
	setString(&cfg.Storage.S3.Prefix, "TABLEDIT_S3_PREFIX")
	setBool(&cfg.Storage.S3.UsePathStyle, "TABLEDIT_S3_USE_PATH_STYLE")
}

// EnsureDirectories creates the local directories the service writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.DefinitionsDir,
		filepath.Dir(c.SourcePath),
		c.Sessions.JournalDir,
	}
	if c.Storage.Type == StorageLocal {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
