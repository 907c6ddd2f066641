// Package config loads and saves roslynq's YAML configuration file,
// mirroring the corpus's LoadWithPrecedence/CreateDefaultConfig/SaveConfig
// shape: built-in defaults, overridden by the config file, overridden by
// explicit CLI flags.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	rqerrors "github.com/roslynq/roslynq/internal/errors"
	"github.com/roslynq/roslynq/internal/xdg"
)

// Config holds roslynq's tunables. The daemon reads IdleTimeoutMinutes and
// DebounceMillis; MaxFrameBytes, LogLevel and ConnectBackoffAttempts are
// loaded and saved but not read by the daemon or the client.
type Config struct {
	IdleTimeoutMinutes     int    `yaml:"idle_timeout_minutes"`
	DebounceMillis         int    `yaml:"debounce_millis"`
	MaxFrameBytes          int    `yaml:"max_frame_bytes"`
	LogLevel               string `yaml:"log_level"`
	ConnectBackoffAttempts int    `yaml:"connect_backoff_attempts"`
}

// Default returns the built-in defaults from spec §4.11.
func Default() Config {
	return Config{
		IdleTimeoutMinutes:     30,
		DebounceMillis:         300,
		MaxFrameBytes:          10 << 20,
		LogLevel:               "info",
		ConnectBackoffAttempts: 30,
	}
}

// Load reads the config file if present, merging it over the defaults. A
// missing file is not an error: Default() is returned unchanged.
func Load() (Config, error) {
	cfg := Default()

	path := xdg.ConfigFilePathReadOnly()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, rqerrors.WrapError(err, "reading config file")
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, rqerrors.WrapError(rqerrors.ErrConfigInvalid, err.Error())
	}
	return cfg, nil
}

// LoadOrCreateDefault loads the config file, writing the default file first
// if none exists.
func LoadOrCreateDefault() (Config, error) {
	path := xdg.ConfigFilePathReadOnly()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := Save(Default()); err != nil {
			return Default(), err
		}
	}
	return Load()
}

// Save writes cfg to the config file, creating parent directories as
// needed.
func Save(cfg Config) error {
	path, err := xdg.ConfigFilePath()
	if err != nil {
		return rqerrors.WrapError(err, "resolving config path")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return rqerrors.WrapError(err, "marshaling config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return rqerrors.WrapError(rqerrors.ErrConfigWriteFailed, err.Error())
	}
	return nil
}
