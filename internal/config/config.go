// Package config handles reading and writing .provet/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/provet-dev/provet/internal/api"
)

// Config is the top-level structure for .provet/config.yaml.
type Config struct {
	Version  int            `yaml:"version"`
	Backend  BackendConfig  `yaml:"backend"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	History  HistoryConfig  `yaml:"history"`
}

// BackendConfig points the client at an analysis backend.
type BackendConfig struct {
	URL string `yaml:"url"`
}

// TimeoutsConfig holds per-operation request timeouts in seconds.
// Streaming endpoints are not bounded by these.
type TimeoutsConfig struct {
	Upload int `yaml:"upload"`
	Review int `yaml:"review"`
	Chat   int `yaml:"chat"`
	Status int `yaml:"status"`
}

// HistoryConfig controls the local analysis history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // relative paths resolve against .provet/
}

const configDir = ".provet"
const configFile = "config.yaml"

// ReadConfig reads .provet/config.yaml from the given directory.
// dir is the working directory (not .provet/ itself).
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, configDir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// ReadOrDefault loads the config if present, falling back to defaults
// when the file does not exist. A malformed file is still an error.
func ReadOrDefault(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// WriteConfig writes cfg to .provet/config.yaml in the given directory.
// Creates the .provet/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, configDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Backend: BackendConfig{
			URL: "http://localhost:8000",
		},
		Timeouts: TimeoutsConfig{
			Upload: 60,
			Review: 120,
			Chat:   120,
			Status: 10,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "history.db",
		},
	}
}

// APITimeouts converts the configured per-operation timeouts into the
// transport client's form, falling back to defaults for zero values.
func (c *Config) APITimeouts() api.Timeouts {
	secs := func(n int) time.Duration { return time.Duration(n) * time.Second }
	t := api.Timeouts{}
	if c.Timeouts.Upload > 0 {
		t.Upload = secs(c.Timeouts.Upload)
	}
	if c.Timeouts.Review > 0 {
		t.Review = secs(c.Timeouts.Review)
	}
	if c.Timeouts.Chat > 0 {
		t.Chat = secs(c.Timeouts.Chat)
	}
	if c.Timeouts.Status > 0 {
		t.Status = secs(c.Timeouts.Status)
	}
	return t
}

// HistoryPath resolves the history database path against .provet/ when
// the configured path is relative. Returns "" when history is disabled.
func (c *Config) HistoryPath(dir string) string {
	if !c.History.Enabled {
		return ""
	}
	p := c.History.Path
	if p == "" {
		p = "history.db"
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, configDir, p)
}
