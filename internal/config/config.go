package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
//
// Resolution order per field: explicit call-site override (Apply), then
// environment variable, then the YAML config file, then the hardcoded
// default — first non-empty value wins, independently per field.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Capture  CaptureConfig  `yaml:"capture"`
	Sync     SyncConfig     `yaml:"sync"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig contains local database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig identifies the central knowledge authority.
type RemoteConfig struct {
	URL        string   `yaml:"url"`
	APIKey     string   `yaml:"api_key"`
	InstanceID string   `yaml:"instance_id"`
	Timeout    Duration `yaml:"timeout"`
}

// CaptureConfig controls how errors and solutions are recorded.
type CaptureConfig struct {
	Language        string   `yaml:"language"`
	Technologies    []string `yaml:"technologies"`
	ProvenThreshold int      `yaml:"proven_threshold"`
}

// SyncConfig contains reconciliation settings.
type SyncConfig struct {
	Interval Duration `yaml:"interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Overrides carries explicit call-site values (CLI flags). Non-empty fields
// win over every other source.
type Overrides struct {
	DBPath     string
	RemoteURL  string
	APIKey     string
	InstanceID string
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Explicit call-site values are applied on top via Apply.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("SIGIL_CONFIG_PATH", "sigil.yaml")

	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Apply overlays explicit call-site values. Non-empty fields win.
func (c *Config) Apply(o Overrides) {
	if o.DBPath != "" {
		c.Database.Path = o.DBPath
	}
	if o.RemoteURL != "" {
		c.Remote.URL = o.RemoteURL
	}
	if o.APIKey != "" {
		c.Remote.APIKey = o.APIKey
	}
	if o.InstanceID != "" {
		c.Remote.InstanceID = o.InstanceID
	}
}

// ResolveInstanceID returns the configured instance identifier, generating
// and retaining a fresh one when no source supplied it.
func (c *Config) ResolveInstanceID() string {
	if c.Remote.InstanceID == "" {
		c.Remote.InstanceID = uuid.New().String()
		slog.Warn("no instance id configured, generated one",
			"instance_id", c.Remote.InstanceID,
		)
	}
	return c.Remote.InstanceID
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "data/sigil.db",
		},
		Remote: RemoteConfig{
			URL:     "http://localhost:8080",
			Timeout: Duration(30 * time.Second),
		},
		Capture: CaptureConfig{
			Language:        "go",
			ProvenThreshold: 4,
		},
		Sync: SyncConfig{
			Interval: Duration(5 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIGIL_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SIGIL_REMOTE_URL"); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv("SIGIL_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	if v := os.Getenv("SIGIL_INSTANCE_ID"); v != "" {
		cfg.Remote.InstanceID = v
	}
	if v := os.Getenv("SIGIL_REMOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Remote.Timeout = Duration(d)
		}
	}

	if v := os.Getenv("SIGIL_LANGUAGE"); v != "" {
		cfg.Capture.Language = v
	}
	if v := os.Getenv("SIGIL_PROVEN_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Capture.ProvenThreshold = n
		}
	}

	if v := os.Getenv("SIGIL_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.Interval = Duration(d)
		}
	}

	if v := os.Getenv("SIGIL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SIGIL_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
