package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseOverridesDefaults(t *testing.T) {
	src := `
[simulation]
tick_rate = "50ms"
per_tick = 4

[bridge]
bind_address = "0.0.0.0:9000"
write_timeout = "2s"
`
	cfg, err := Parse([]byte(src), "inline")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Simulation.TickRate != 50*time.Millisecond {
		t.Fatalf("expected tick rate 50ms, got %s", cfg.Simulation.TickRate)
	}
	if cfg.Simulation.PerTick != 4 {
		t.Fatalf("expected per_tick 4, got %d", cfg.Simulation.PerTick)
	}
	if cfg.Bridge.BindAddress != "0.0.0.0:9000" {
		t.Fatalf("expected overridden bind address, got %q", cfg.Bridge.BindAddress)
	}
	if cfg.Bridge.WriteTimeout != 2*time.Second {
		t.Fatalf("expected write timeout 2s, got %s", cfg.Bridge.WriteTimeout)
	}
	// Untouched sections keep their defaults.
	if cfg.Bridge.Path != "/dock" {
		t.Fatalf("expected default path /dock, got %q", cfg.Bridge.Path)
	}
	if cfg.Scripting.CallTimeout != 5*time.Second {
		t.Fatalf("expected default call timeout, got %s", cfg.Scripting.CallTimeout)
	}
	if cfg.Server.StartTime == 0 {
		t.Fatalf("expected start time to be stamped")
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"tick rate": "[simulation]\ntick_rate = \"0s\"\n",
		"per tick":  "[simulation]\nper_tick = 0\n",
		"radius":    "[simulation]\npick_radius_max = -1.0\n",
		"out queue": "[bridge]\nenabled = true\nout_queue_size = 0\n",
		"syntax":    "[simulation\n",
	}
	for name, src := range cases {
		if _, err := Parse([]byte(src), name); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canvasdock.toml")
	if err := os.WriteFile(path, []byte("[server]\nname = \"studio\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Name != "studio" {
		t.Fatalf("expected name studio, got %q", cfg.Server.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if !cfg.Bridge.Enabled || cfg.SceneStore.DSN != "" {
		t.Fatalf("expected bridge on and scene store off by default")
	}
	if cfg.Server.StartTime == 0 {
		t.Fatalf("expected start time stamped")
	}
}
