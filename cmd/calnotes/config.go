package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/maruel/calnotes/internal/notes"
	"github.com/maruel/calnotes/internal/syncclient"
	"gopkg.in/yaml.v3"
)

// Config is the content of config.yaml.
type Config struct {
	// Server is the base URL of calnotes-server.
	Server string `yaml:"server"`
	// Replica is the local copy of the notes.
	Replica string `yaml:"replica"`
	// Interval is the period of background pulls in "calnotes sync".
	Interval time.Duration `yaml:"interval"`
	// Style of new notes.
	Font  string `yaml:"font"`
	Size  string `yaml:"size"`
	Color string `yaml:"color"`
}

// configDir returns $XDG_CONFIG_HOME/calnotes or its platform equivalent.
func configDir() string {
	d, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(d, "calnotes")
}

// defaultConfig returns the configuration used when no file exists.
func defaultConfig(dir string) Config {
	return Config{
		Server:   "http://localhost:3001",
		Replica:  filepath.Join(dir, "notes.json"),
		Interval: syncclient.DefaultInterval,
		Font:     notes.DefaultFont,
		Size:     notes.DefaultSize,
		Color:    notes.DefaultColor,
	}
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig(filepath.Dir(path))
	raw, err := os.ReadFile(path) //nolint:gosec // G304: user-provided config path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = syncclient.DefaultInterval
	}
	if cfg.Replica != "" && !filepath.IsAbs(cfg.Replica) {
		cfg.Replica = filepath.Join(filepath.Dir(path), cfg.Replica)
	}
	return cfg, nil
}

// saveConfig writes cfg to path, creating the directory.
func saveConfig(path string, cfg Config) error {
	raw, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
