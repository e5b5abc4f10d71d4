package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v2"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != "8080" {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.OCR.DPI != 300 {
		t.Errorf("DPI = %d, want 300", cfg.OCR.DPI)
	}
	if cfg.OCR.DefaultLanguage != "eng" {
		t.Errorf("default language = %q, want eng", cfg.OCR.DefaultLanguage)
	}
	if cfg.OCR.WorkerPoolSize != 20 {
		t.Errorf("worker pool size = %d, want 20", cfg.OCR.WorkerPoolSize)
	}
	if cfg.OCR.QueueSize != 100 {
		t.Errorf("queue size = %d, want 100", cfg.OCR.QueueSize)
	}
	if len(cfg.OCR.Languages) == 0 {
		t.Error("language allow-list should not be empty")
	}
	if cfg.Ledger.Path == "" {
		t.Error("ledger path should have a default")
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written config: %v", err)
	}

	// The written file must round-trip back to the defaults.
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid yaml: %v", err)
	}
	if cfg.OCR.DPI != 300 || cfg.Server.Port != "8080" {
		t.Errorf("round-tripped config = %+v", cfg)
	}
}

func TestNewManager_NoConfigFile(t *testing.T) {
	// Without a config file the manager serves defaults.
	mgr, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg := mgr.Get()
	if cfg.OCR.DPI != 300 {
		t.Errorf("DPI = %d, want default 300", cfg.OCR.DPI)
	}
}

func TestNewManager_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  host: 0.0.0.0\n  port: \"9999\"\nocr:\n  dpi: 150\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg := mgr.Get()
	if cfg.Server.Port != "9999" {
		t.Errorf("port = %q, want 9999", cfg.Server.Port)
	}
	if cfg.OCR.DPI != 150 {
		t.Errorf("DPI = %d, want 150", cfg.OCR.DPI)
	}
	// Unset keys keep their defaults.
	if cfg.OCR.DefaultLanguage != "eng" {
		t.Errorf("default language = %q, want eng", cfg.OCR.DefaultLanguage)
	}
}
