package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.IdleTimeoutMinutes != 30 || cfg.DebounceMillis != 300 ||
		cfg.MaxFrameBytes != 10<<20 || cfg.LogLevel != "info" ||
		cfg.ConnectBackoffAttempts != 30 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	xdg.Reload()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected default config, got %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	xdg.Reload()

	cfg := Default()
	cfg.IdleTimeoutMinutes = 5
	cfg.LogLevel = "debug"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != cfg {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, cfg)
	}

	if _, err := os.Stat(filepath.Join(dir, "roslynq", "config.yaml")); err != nil {
		t.Fatalf("expected config file on disk: %v", err)
	}
}

func TestLoadOrCreateDefaultWritesFileOnce(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	xdg.Reload()

	cfg, err := LoadOrCreateDefault()
	if err != nil {
		t.Fatalf("LoadOrCreateDefault: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected default config, got %+v", cfg)
	}

	path := filepath.Join(dir, "roslynq", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file written: %v", err)
	}
}
