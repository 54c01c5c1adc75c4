package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
discovery:
  strategy: range
  cidr: 203.0.113.0/24
  ports: [25565]
store:
  backend: postgres
  dsn: "postgres://localhost/voxelwatch"
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discovery.CIDR != "203.0.113.0/24" {
		t.Errorf("CIDR = %q, want 203.0.113.0/24", cfg.Discovery.CIDR)
	}
	if cfg.Store.Backend != "postgres" {
		t.Errorf("Store.Backend = %q, want postgres", cfg.Store.Backend)
	}
	// Untouched fields should keep their defaults.
	if cfg.Concurrency.Global != Default().Concurrency.Global {
		t.Errorf("Concurrency.Global = %d, want default", cfg.Concurrency.Global)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsRangeWithoutCIDR(t *testing.T) {
	cfg := Default()
	cfg.Discovery.CIDR = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for range strategy without CIDR")
	}
}

func TestValidateRejectsBadMemoryThresholds(t *testing.T) {
	cfg := Default()
	cfg.Discovery.CIDR = "203.0.113.0/24"
	cfg.Memory.GentleFraction = 0.9
	cfg.Memory.CriticalFraction = 0.8
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for gentle >= critical threshold")
	}
}

func TestEnvOverrideWinsOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("discovery:\n  strategy: range\n  cidr: 203.0.113.0/24\n  ports: [25565]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("VOXELWATCH_STORE_DSN", "./overridden.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.DSN != "./overridden.db" {
		t.Errorf("Store.DSN = %q, want ./overridden.db", cfg.Store.DSN)
	}
}
