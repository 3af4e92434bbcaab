package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.PageSize != 4096 || cfg.BufferPool != 1024 || cfg.Workers != 4 || cfg.ReadAhead != 4 {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
	if cfg.MaintInterval != 5*time.Minute {
		t.Fatalf("expected a default maintenance interval of 5m, got %s", cfg.MaintInterval)
	}
}

func TestLoadOverlaysProvidedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	jsonContent := `{"data_dir": "/var/bambang", "workers": 16}`
	if err := os.WriteFile(path, []byte(jsonContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/var/bambang" {
		t.Fatalf("expected overridden data_dir, got %q", cfg.DataDir)
	}
	if cfg.Workers != 16 {
		t.Fatalf("expected overridden workers, got %d", cfg.Workers)
	}
	// fields not present in the file fall back to Default()
	if cfg.PageSize != 4096 || cfg.BufferPool != 1024 {
		t.Fatalf("expected un-overridden fields to keep their defaults, got %+v", cfg)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.json"); err == nil {
		t.Fatalf("expected an error loading a nonexistent config file")
	}
}

func TestTablePathJoinsDataDir(t *testing.T) {
	cfg := Config{DataDir: "/var/bambang"}
	if got := cfg.TablePath("lineorder"); got != filepath.Join("/var/bambang", "lineorder.db") {
		t.Fatalf("unexpected table path: %q", got)
	}
}
