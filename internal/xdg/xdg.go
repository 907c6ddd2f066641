// Package xdg resolves roslynq's config and data directories against the
// XDG base directory specification.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// ConfigDir returns the configuration directory path, creating it if
// necessary.
func ConfigDir() (string, error) {
	configPath := filepath.Join(xdg.ConfigHome, "roslynq")
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return "", err
	}
	return configPath, nil
}

// DataDir returns the data directory path, creating it if necessary. This
// is where the daemon registry database lives.
func DataDir() (string, error) {
	dataPath := filepath.Join(xdg.DataHome, "roslynq")
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return "", err
	}
	return dataPath, nil
}

// ConfigFilePath returns the full path to config.yaml, creating the config
// directory if necessary.
func ConfigFilePath() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// ConfigFilePathReadOnly returns the full path to config.yaml without
// creating any directory. Used to check for existence before load.
func ConfigFilePathReadOnly() string {
	return filepath.Join(xdg.ConfigHome, "roslynq", "config.yaml")
}

// RegistryFilePath returns the full path to the daemon registry database,
// creating the data directory if necessary.
func RegistryFilePath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "registry.db"), nil
}
