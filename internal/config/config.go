// Package config loads server configuration from spectreweave.yaml, with
// SW_-prefixed environment overrides. A default config file is written on
// first run so a bare `sw serve` works out of the box.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configFileName = "spectreweave"
	configFileType = "yaml"
	configFileExt  = "spectreweave.yaml"

	envPrefix = "SW"
)

// defaultConfigYAML is written to the config directory on first run.
const defaultConfigYAML = `# SpectreWeave server configuration.
# Every key can be overridden with an SW_-prefixed environment variable,
# e.g. SW_LISTEN_ADDR, SW_DATABASE_DSN, SW_BACKEND_ORIGIN.

listen_addr: ":8080"

# DSN selects the driver:
#   .spectreweave/spectreweave.db   embedded SQLite
#   libsql://...                    remote Turso replica
#   postgres://...                  Supabase/Postgres
database_dsn: ".spectreweave/spectreweave.db"

# Drafts directory watched by the sync daemon (empty disables the daemon).
# drafts_dir: drafts

# Generation engine origin (empty disables proxying).
# backend_origin: https://engine.example.com

# Service JWT used when a request carries no credentials of its own.
# service_jwt: ""

# Optional direct-generation fallback.
# anthropic_api_key: ""

# Optional Neo4j reachability check included in /health.
# neo4j_url: http://localhost:7474

# Agent seed file loaded when the agents table is empty.
agent_seed_file: agents.toml

# Log to a rotating file instead of stderr when set.
# log_file: spectreweave.log
log_max_size_mb: 50
log_max_backups: 3
`

// Config holds the resolved server configuration.
type Config struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	DatabaseDSN string `mapstructure:"database_dsn"`
	DraftsDir   string `mapstructure:"drafts_dir"`

	BackendOrigin   string        `mapstructure:"backend_origin"`
	BackendTimeout  time.Duration `mapstructure:"backend_timeout"`
	ServiceJWT      string        `mapstructure:"service_jwt"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	Neo4jURL        string        `mapstructure:"neo4j_url"`

	AgentSeedFile string `mapstructure:"agent_seed_file"`

	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

// Load reads configuration from configDir, creating the directory and a
// default config file on first run. A missing config file is not an error;
// defaults and environment overrides still apply.
func Load(configDir string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	// AutomaticEnv only consults keys viper already knows about, so every
	// key needs a default here or its SW_ override is silently ignored.
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database_dsn", filepath.Join(".spectreweave", "spectreweave.db"))
	v.SetDefault("drafts_dir", "")
	v.SetDefault("backend_origin", "")
	v.SetDefault("backend_timeout", 30*time.Second)
	v.SetDefault("service_jwt", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("neo4j_url", "")
	v.SetDefault("agent_seed_file", "agents.toml")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 50)
	v.SetDefault("log_max_backups", 3)

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for nonsense values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database_dsn is required")
	}
	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 {
		return fmt.Errorf("log rotation settings must be non-negative")
	}
	return nil
}

// NewLogger builds the process logger. With LogFile set, output goes to a
// size-rotated file; otherwise to stderr.
func (c *Config) NewLogger(prefix string) *log.Logger {
	if c.LogFile == "" {
		return log.New(os.Stderr, prefix, log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
	}, prefix, log.LstdFlags)
}

// DefaultConfigDir returns the per-project config directory: .spectreweave
// under the working directory.
func DefaultConfigDir() string {
	return ".spectreweave"
}

func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
