// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServeAddr != "localhost:8080" {
		t.Errorf("serve addr = %q, want default", cfg.ServeAddr)
	}
	if cfg.Steps() != DefaultMaxSteps {
		t.Errorf("steps = %d, want %d", cfg.Steps(), DefaultMaxSteps)
	}
}

func TestLoadParsesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cstep.yaml")
	data := []byte("entry: compute\nstep_delay_ms: 50\nmax_steps: 500\ntrace_path: trace.db\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Entry != "compute" || cfg.StepDelayMs != 50 || cfg.TracePath != "trace.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Steps() != 500 {
		t.Errorf("steps = %d, want 500", cfg.Steps())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cstep.yaml")
	want := Config{Entry: "main", MaxSteps: 10, ServeAddr: "localhost:9000"}
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cstep.yaml")
	if err := os.WriteFile(path, []byte("entry: [unclosed"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("malformed config loaded without error")
	}
}
