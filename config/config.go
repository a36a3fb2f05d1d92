// Package config persists analysis settings for the command-line driver.
// The engine itself owns no configuration state; it only ever sees the
// immutable option structs loaded from here.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/varghele/quickmidi/engine"
	"github.com/varghele/quickmidi/fix"
)

// Config bundles the engine options and the correction policy.
type Config struct {
	Options engine.Options `json:"options"`
	Policy  fix.Policy     `json:"policy"`
}

// DefaultConfig returns the stock settings.
func DefaultConfig() *Config {
	return &Config{
		Options: engine.DefaultOptions(),
		Policy:  fix.DefaultPolicy(),
	}
}

// ConfigDir returns the settings directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "quickmidi"), nil
}

// ConfigPath returns the full path to settings.json.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load reads settings from the given path, falling back to the default
// location when path is empty and to defaults when the file is missing.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the settings to the given path, defaulting to the standard
// location when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
