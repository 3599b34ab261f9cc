package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9000

machines:
  - id: M001
    name: Mill A1
    capabilities: [milling, drilling]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 9090 {
		t.Errorf("Server.MetricsPort = %d, want default 9090", cfg.Server.MetricsPort)
	}
	if cfg.Scheduler.MaxRetries != 3 {
		t.Errorf("Scheduler.MaxRetries = %d, want default 3", cfg.Scheduler.MaxRetries)
	}
	if cfg.Telemetry.MaxTemperature != 90 {
		t.Errorf("Telemetry.MaxTemperature = %v, want default 90", cfg.Telemetry.MaxTemperature)
	}

	if len(cfg.Machines) != 1 {
		t.Fatalf("len(Machines) = %d, want 1", len(cfg.Machines))
	}
	m := cfg.Machines[0]
	if m.ID != "M001" || len(m.Capabilities) != 2 {
		t.Errorf("Machines[0] = %+v, want M001 with 2 capabilities", m)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file succeeded, want error")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() of invalid YAML succeeded, want error")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	if got := cfg.TickInterval(); got != 500*time.Millisecond {
		t.Errorf("TickInterval() = %s, want 500ms", got)
	}
	if got := cfg.GraceWindow(); got != 30*time.Second {
		t.Errorf("GraceWindow() = %s, want 30s", got)
	}
	if got := cfg.FlushInterval(); got != 10*time.Second {
		t.Errorf("FlushInterval() = %s, want 10s", got)
	}
}
