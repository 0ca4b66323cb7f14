// Package config handles loading and validating runbox configuration.
//
// Configuration comes from a JSON or YAML file plus environment overrides.
// The project root — the boundary all workspaces must stay inside — is an
// explicit value here, passed into the resolver at construction. Nothing
// reads it from process-global mutable state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists.
	_ = godotenv.Load()
}

// Config is the root configuration for runbox.
type Config struct {
	// ProjectRoot is the directory all workspaces resolve under.
	// Default: ~/.runbox/projects. Override: RUNBOX_ROOT env var.
	ProjectRoot string `json:"project_root,omitempty" yaml:"project_root,omitempty"`

	// DataDir holds persistent state (the SQLite history database).
	// Default: ~/.runbox/data. Override: RUNBOX_DATA_DIR env var.
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`

	Provider      ProviderConfig       `json:"provider" yaml:"provider"`
	Sandbox       SandboxConfig        `json:"sandbox" yaml:"sandbox"`
	Storage       *StorageConfig       `json:"storage,omitempty" yaml:"storage,omitempty"` // nil = SQLite default.
	Gateway       GatewayConfig        `json:"gateway" yaml:"gateway"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = disabled.
	Janitor       *JanitorConfig       `json:"janitor,omitempty" yaml:"janitor,omitempty"`             // nil = disabled.
}

// ProviderConfig selects and configures the LLM backend used for
// natural-language translation.
type ProviderConfig struct {
	Name    string `json:"name" yaml:"name"`                             // "anthropic" (default), "openai", "ollama".
	Model   string `json:"model" yaml:"model"`                           // Model identifier.
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`   // Usually via env var instead.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"` // Override for self-hosted backends.
}

// SandboxConfig constrains command execution.
type SandboxConfig struct {
	CommandTimeoutS int `json:"command_timeout_s" yaml:"command_timeout_s"` // Per command. Default: 30.
	MaxCPUSeconds   int `json:"max_cpu_seconds" yaml:"max_cpu_seconds"`     // ulimit -t. Default: 60.
	MaxMemoryMB     int `json:"max_memory_mb" yaml:"max_memory_mb"`         // ulimit -v. Default: 512.
}

// CommandTimeout returns the per-command wall-clock limit.
func (s SandboxConfig) CommandTimeout() time.Duration {
	if s.CommandTimeoutS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.CommandTimeoutS) * time.Second
}

// StorageConfig configures the execution-history backend.
type StorageConfig struct {
	Driver   string          `json:"driver" yaml:"driver"` // "sqlite" (default) or "postgres".
	SQLite   *SQLiteConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres *PostgresConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

// StorageDriver returns the configured driver, defaulting to "sqlite".
func (s *StorageConfig) StorageDriver() string {
	if s != nil && s.Driver != "" {
		return s.Driver
	}
	return "sqlite"
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"` // Default: <data_dir>/runbox.db.
	JournalMode string `json:"journal_mode" yaml:"journal_mode"`     // Default: "wal".
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN              string `json:"dsn" yaml:"dsn"` // Override: RUNBOX_DB_DSN env var.
	MaxConns         int    `json:"max_conns" yaml:"max_conns"`
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"`
}

// GatewayConfig configures the HTTP API.
type GatewayConfig struct {
	ListenAddr        string            `json:"listen_addr" yaml:"listen_addr"` // Default: ":8080".
	EnableDocs        bool              `json:"enable_docs" yaml:"enable_docs"`
	APIKeys           map[string]string `json:"api_keys,omitempty" yaml:"api_keys,omitempty"` // key → user ID. Also RUNBOX_API_KEYS.
	RequestsPerMinute int               `json:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize         int               `json:"burst_size" yaml:"burst_size"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics".
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317".
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc".
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "runbox".
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0.
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev.
}

// JanitorConfig configures scheduled history pruning.
type JanitorConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Schedule      string `json:"schedule" yaml:"schedule"`             // Cron expression. Default: "0 * * * *".
	RetentionDays int    `json:"retention_days" yaml:"retention_days"` // Default: 30.
}

// DefaultConfigPath returns ~/.runbox/config.json.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".runbox", "config.json")
}

// Load reads the config file at path (JSON or YAML by extension), applies
// environment overrides and defaults, and validates. A missing file is not
// an error — defaults plus environment are a complete configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("RUNBOX_ROOT"); v != "" {
		c.ProjectRoot = v
	}
	if v := os.Getenv("RUNBOX_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("RUNBOX_LISTEN_ADDR"); v != "" {
		c.Gateway.ListenAddr = v
	}
	if v := os.Getenv("RUNBOX_DB_DSN"); v != "" {
		if c.Storage == nil {
			c.Storage = &StorageConfig{Driver: "postgres"}
		}
		if c.Storage.Postgres == nil {
			c.Storage.Postgres = &PostgresConfig{}
		}
		c.Storage.Postgres.DSN = v
	}

	// RUNBOX_API_KEYS: comma-separated "key:user" pairs.
	if v := os.Getenv("RUNBOX_API_KEYS"); v != "" {
		if c.Gateway.APIKeys == nil {
			c.Gateway.APIKeys = make(map[string]string)
		}
		for _, pair := range strings.Split(v, ",") {
			key, user, found := strings.Cut(strings.TrimSpace(pair), ":")
			if found && key != "" {
				c.Gateway.APIKeys[key] = user
			}
		}
	}

	// Provider credentials always come from env when present.
	switch c.Provider.Name {
	case "openai", "ollama":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			c.Provider.APIKey = v
		}
	default:
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			c.Provider.APIKey = v
		}
	}
}

func (c *Config) applyDefaults() {
	home, _ := os.UserHomeDir()
	if c.ProjectRoot == "" {
		c.ProjectRoot = filepath.Join(home, ".runbox", "projects")
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(home, ".runbox", "data")
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "anthropic"
	}
	if c.Provider.Model == "" {
		switch c.Provider.Name {
		case "openai":
			c.Provider.Model = "gpt-4o-mini"
		case "ollama":
			c.Provider.Model = "llama3.1"
		default:
			c.Provider.Model = "claude-sonnet-4-5"
		}
	}
	if c.Gateway.ListenAddr == "" {
		c.Gateway.ListenAddr = ":8080"
	}
	if c.Janitor != nil && c.Janitor.Enabled {
		if c.Janitor.Schedule == "" {
			c.Janitor.Schedule = "0 * * * *"
		}
		if c.Janitor.RetentionDays <= 0 {
			c.Janitor.RetentionDays = 30
		}
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "anthropic", "openai", "ollama":
	default:
		return fmt.Errorf("unknown provider %q (want anthropic, openai, or ollama)", c.Provider.Name)
	}
	if c.Storage != nil {
		switch c.Storage.StorageDriver() {
		case "sqlite":
		case "postgres":
			if c.Storage.Postgres == nil || c.Storage.Postgres.DSN == "" {
				return fmt.Errorf("postgres storage requires a DSN")
			}
		default:
			return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
		}
	}
	if c.Sandbox.CommandTimeoutS < 0 {
		return fmt.Errorf("sandbox command_timeout_s must not be negative")
	}
	return nil
}

// SQLitePath returns the history database path, deriving the default from
// the data directory.
func (c *Config) SQLitePath() string {
	if c.Storage != nil && c.Storage.SQLite != nil && c.Storage.SQLite.Path != "" {
		return c.Storage.SQLite.Path
	}
	return filepath.Join(c.DataDir, "runbox.db")
}
