package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.MaxBackups != 7 {
		t.Errorf("Expected MaxBackups=7, got %d", cfg.Store.MaxBackups)
	}
	if cfg.Store.BackupInterval != 24*time.Hour {
		t.Errorf("Expected BackupInterval=24h, got %v", cfg.Store.BackupInterval)
	}

	if !cfg.RestAPI.Enabled {
		t.Error("Expected RestAPI.Enabled=true")
	}
	if cfg.RestAPI.Port != 3002 {
		t.Errorf("Expected Port=3002, got %d", cfg.RestAPI.Port)
	}
	if cfg.RestAPI.Host != "localhost" {
		t.Errorf("Expected Host=localhost, got %s", cfg.RestAPI.Host)
	}
	if !cfg.RestAPI.CORS {
		t.Error("Expected CORS=true")
	}

	if cfg.Sampler.DefaultIterations != 100 {
		t.Errorf("Expected DefaultIterations=100, got %d", cfg.Sampler.DefaultIterations)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		expectErr bool
	}{
		{
			name:      "valid config",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name: "empty store path",
			modify: func(c *Config) {
				c.Store.Path = ""
			},
			expectErr: true,
		},
		{
			name: "negative max backups",
			modify: func(c *Config) {
				c.Store.MaxBackups = -1
			},
			expectErr: true,
		},
		{
			name: "invalid port",
			modify: func(c *Config) {
				c.RestAPI.Port = 99999
			},
			expectErr: true,
		},
		{
			name: "negative sampler iterations",
			modify: func(c *Config) {
				c.Sampler.DefaultIterations = -1
			},
			expectErr: true,
		},
		{
			name: "invalid logging level",
			modify: func(c *Config) {
				c.Logging.Level = "invalid"
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error with missing config, got: %v", err)
	}

	if cfg == nil {
		t.Fatal("Expected config, got nil")
	}

	if cfg.RestAPI.Port != 3002 {
		t.Errorf("Expected default port 3002, got %d", cfg.RestAPI.Port)
	}
}

func TestLoadConfig_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
profile: test
store:
  path: /tmp/test.db
  backup_interval: 12h
  max_backups: 3
rest_api:
  enabled: true
  port: 4000
  host: 127.0.0.1
  cors: false
sampler:
  default_iterations: 50
  default_seed: 7
logging:
  level: debug
  format: json
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Profile != "test" {
		t.Errorf("Expected profile=test, got %s", cfg.Profile)
	}
	if cfg.Store.Path != "/tmp/test.db" {
		t.Errorf("Expected store path=/tmp/test.db, got %s", cfg.Store.Path)
	}
	if cfg.Store.MaxBackups != 3 {
		t.Errorf("Expected max_backups=3, got %d", cfg.Store.MaxBackups)
	}
	if cfg.RestAPI.Port != 4000 {
		t.Errorf("Expected port=4000, got %d", cfg.RestAPI.Port)
	}
	if cfg.RestAPI.CORS {
		t.Error("Expected CORS=false, got true")
	}
	if cfg.Sampler.DefaultIterations != 50 {
		t.Errorf("Expected default_iterations=50, got %d", cfg.Sampler.DefaultIterations)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected level=debug, got %s", cfg.Logging.Level)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{
		Store: StoreConfig{
			Path: filepath.Join(tmpDir, "subdir", "test.db"),
		},
	}

	if err := cfg.EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "subdir")); os.IsNotExist(err) {
		t.Error("Config directory was not created")
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath returned empty string")
	}

	homeDir, _ := os.UserHomeDir()
	expected := filepath.Join(homeDir, ".irmd")
	if path != expected {
		t.Errorf("Expected %s, got %s", expected, path)
	}
}

func TestStorePath(t *testing.T) {
	path := StorePath()
	if path == "" {
		t.Error("StorePath returned empty string")
	}

	if filepath.Base(path) != "models.db" {
		t.Errorf("Expected store file named models.db, got %s", filepath.Base(path))
	}
}
