package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete irmd configuration.
type Config struct {
	Profile   string          `mapstructure:"profile"`
	Store     StoreConfig     `mapstructure:"store"`
	RestAPI   RestAPIConfig   `mapstructure:"rest_api"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Sampler   SamplerConfig   `mapstructure:"sampler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StoreConfig holds snapshot store configuration.
type StoreConfig struct {
	Path           string        `mapstructure:"path"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
	MaxBackups     int           `mapstructure:"max_backups"`
}

// RestAPIConfig holds REST API server configuration.
type RestAPIConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	AutoPort     bool     `mapstructure:"auto_port"`
	Port         int      `mapstructure:"port"`
	Host         string   `mapstructure:"host"`
	CORS         bool     `mapstructure:"cors"`
	APIKey       string   `mapstructure:"api_key"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// RateLimitConfig holds rate limiting configuration for the REST API.
type RateLimitConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Global  RateLimitRule     `mapstructure:"global"`
	Tools   []RateLimitToolRule `mapstructure:"tools"`
}

// RateLimitRule defines a requests-per-second/burst-size pair.
type RateLimitRule struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// RateLimitToolRule is a named RateLimitRule, for per-route-category limits.
type RateLimitToolRule struct {
	Name              string  `mapstructure:"name"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// SamplerConfig holds default Gibbs-sweep parameters used when a run is
// started without explicit overrides.
type SamplerConfig struct {
	DefaultIterations int   `mapstructure:"default_iterations"`
	DefaultSeed       int64 `mapstructure:"default_seed"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".irmd")

	return &Config{
		Profile: "default",
		Store: StoreConfig{
			Path:           filepath.Join(configDir, "models.db"),
			BackupInterval: 24 * time.Hour,
			MaxBackups:     7,
		},
		RestAPI: RestAPIConfig{
			Enabled:  true,
			AutoPort: true,
			Port:     3002,
			Host:     "localhost",
			CORS:     true,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Global:  RateLimitRule{RequestsPerSecond: 100, BurstSize: 200},
		},
		Sampler: SamplerConfig{
			DefaultIterations: 100,
			DefaultSeed:       1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from YAML file with fallback to defaults.
// Searches in multiple locations:
// 1. ./config.yaml (current directory)
// 2. ~/.irmd/config.yaml (user home)
// 3. /etc/irmd/config.yaml (system-wide)
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".irmd"))
	v.AddConfigPath("/etc/irmd")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values in Viper.
func setDefaults(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".irmd")

	v.SetDefault("profile", "default")
	v.SetDefault("store.path", filepath.Join(configDir, "models.db"))
	v.SetDefault("store.backup_interval", "24h")
	v.SetDefault("store.max_backups", 7)

	v.SetDefault("rest_api.enabled", true)
	v.SetDefault("rest_api.auto_port", true)
	v.SetDefault("rest_api.port", 3002)
	v.SetDefault("rest_api.host", "localhost")
	v.SetDefault("rest_api.cors", true)

	v.SetDefault("sampler.default_iterations", 100)
	v.SetDefault("sampler.default_seed", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Store.MaxBackups < 0 {
		return fmt.Errorf("store.max_backups must be >= 0")
	}

	if c.RestAPI.Enabled {
		if c.RestAPI.Port < 1 || c.RestAPI.Port > 65535 {
			return fmt.Errorf("rest_api.port must be between 1 and 65535")
		}
		if c.RestAPI.Host == "" {
			return fmt.Errorf("rest_api.host is required when REST API is enabled")
		}
	}

	if c.Sampler.DefaultIterations < 0 {
		return fmt.Errorf("sampler.default_iterations must be >= 0")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func (c *Config) EnsureConfigDir() error {
	configDir := filepath.Dir(c.Store.Path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// ConfigPath returns the path to the configuration directory.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".irmd")
}

// StorePath returns the default snapshot store path.
func StorePath() string {
	return filepath.Join(ConfigPath(), "models.db")
}
