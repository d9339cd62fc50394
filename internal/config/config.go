// ABOUTME: Configuration loading and parsing for the flareforge workspace and backend
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Cache drivers accepted by CacheConfig.Driver.
const (
	CacheDriverSQLite = "sqlite"
	CacheDriverBolt   = "bolt"
	CacheDriverMemory = "memory"
)

// Config represents the complete flareforge configuration.
// The client CLI reads Remote, Cache, Sync and Logging; the backend server
// reads Server, Database, Logging and Metrics.
type Config struct {
	Remote   RemoteConfig   `yaml:"remote" toml:"remote"`
	Cache    CacheConfig    `yaml:"cache" toml:"cache"`
	Sync     SyncConfig     `yaml:"sync" toml:"sync"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// RemoteConfig describes the backend the workspace mirrors to.
// An empty BaseURL runs every domain in local-only mode.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Timeout time.Duration `yaml:"-" toml:"-"`
	Breaker BreakerConfig `yaml:"breaker" toml:"breaker"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// BreakerConfig holds circuit breaker settings for remote calls
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled" toml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures" toml:"max_failures"`
	OpenTimeout time.Duration `yaml:"-" toml:"-"`

	OpenTimeoutRaw string `yaml:"open_timeout" toml:"open_timeout"`
}

// CacheConfig selects the durable local cache
type CacheConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
}

// SyncConfig holds pending-deletion retry timing
type SyncConfig struct {
	FlushInterval time.Duration `yaml:"-" toml:"-"`
	RetryInitial  time.Duration `yaml:"-" toml:"-"`
	RetryMax      time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	FlushIntervalRaw string `yaml:"flush_interval" toml:"flush_interval"`
	RetryInitialRaw  string `yaml:"retry_initial" toml:"retry_initial"`
	RetryMaxRaw      string `yaml:"retry_max" toml:"retry_max"`
}

// ServerConfig holds backend server settings
type ServerConfig struct {
	HTTPAddr       string        `yaml:"http_addr" toml:"http_addr"`
	AllowedOrigins []string      `yaml:"allowed_origins" toml:"allowed_origins"`
	DedupeTTL      time.Duration `yaml:"-" toml:"-"`

	DedupeTTLRaw string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// DatabaseConfig holds backend database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns a configuration that works without a config file:
// local-only workspace in a SQLite cache under the XDG data directory.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks the settings shared by the CLI and the server.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case CacheDriverSQLite, CacheDriverBolt:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for the %s driver", c.Cache.Driver)
		}
	case CacheDriverMemory:
	default:
		return fmt.Errorf("cache.driver must be one of sqlite, bolt, memory (got %q)", c.Cache.Driver)
	}

	if c.Remote.BaseURL != "" &&
		!strings.HasPrefix(c.Remote.BaseURL, "http://") &&
		!strings.HasPrefix(c.Remote.BaseURL, "https://") {
		return fmt.Errorf("remote.base_url must start with http:// or https://")
	}

	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout must not be negative")
	}

	if c.Remote.Breaker.OpenTimeout < 0 {
		return fmt.Errorf("remote.breaker.open_timeout must not be negative")
	}

	if c.Sync.FlushInterval <= 0 {
		return fmt.Errorf("sync.flush_interval must be positive (got %s)", c.Sync.FlushInterval)
	}
	if c.Sync.RetryInitial < 0 {
		return fmt.Errorf("sync.retry_initial must not be negative")
	}
	if c.Sync.RetryMax < 0 {
		return fmt.Errorf("sync.retry_max must not be negative")
	}
	if c.Sync.RetryMax < c.Sync.RetryInitial {
		return fmt.Errorf("sync.retry_max (%s) must be >= sync.retry_initial (%s)", c.Sync.RetryMax, c.Sync.RetryInitial)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	return nil
}

// ValidateServer checks the fields the backend server needs on top of Validate.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.DedupeTTL < 0 {
		return fmt.Errorf("server.dedupe_ttl must not be negative")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"remote.timeout", cfg.Remote.TimeoutRaw, &cfg.Remote.Timeout},
		{"remote.breaker.open_timeout", cfg.Remote.Breaker.OpenTimeoutRaw, &cfg.Remote.Breaker.OpenTimeout},
		{"sync.flush_interval", cfg.Sync.FlushIntervalRaw, &cfg.Sync.FlushInterval},
		{"sync.retry_initial", cfg.Sync.RetryInitialRaw, &cfg.Sync.RetryInitial},
		{"sync.retry_max", cfg.Sync.RetryMaxRaw, &cfg.Sync.RetryMax},
		{"server.dedupe_ttl", cfg.Server.DedupeTTLRaw, &cfg.Server.DedupeTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

// applyDefaults fills zero values with defaults
func applyDefaults(cfg *Config) {
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 10 * time.Second
	}
	if cfg.Remote.Breaker.MaxFailures == 0 {
		cfg.Remote.Breaker.MaxFailures = 3
	}
	if cfg.Remote.Breaker.OpenTimeout == 0 {
		cfg.Remote.Breaker.OpenTimeout = 30 * time.Second
	}

	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = CacheDriverSQLite
	}
	if cfg.Cache.Path == "" {
		switch cfg.Cache.Driver {
		case CacheDriverSQLite:
			cfg.Cache.Path = filepath.Join(DataDir(), "workspace.db")
		case CacheDriverBolt:
			cfg.Cache.Path = filepath.Join(DataDir(), "workspace.bolt")
		}
	}

	if cfg.Sync.FlushInterval == 0 {
		cfg.Sync.FlushInterval = 15 * time.Second
	}
	if cfg.Sync.RetryInitial == 0 {
		cfg.Sync.RetryInitial = time.Second
	}
	if cfg.Sync.RetryMax == 0 {
		cfg.Sync.RetryMax = 5 * time.Minute
	}

	if cfg.Server.DedupeTTL == 0 {
		cfg.Server.DedupeTTL = 10 * time.Minute
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Path returns the config file path.
// Priority: FLAREFORGE_CONFIG env var > XDG_CONFIG_HOME/flareforge/config.yaml > ~/.config/flareforge/config.yaml
func Path() string {
	if envPath := os.Getenv("FLAREFORGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "flareforge", "config.yaml")
}

// DataDir returns the flareforge data directory.
// Priority: XDG_DATA_HOME/flareforge > ~/.local/share/flareforge
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "flareforge")
}

// LoadOrDefault loads the file at path when it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}
