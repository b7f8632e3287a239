package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devmon.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := DefaultConfig()
	if cfg.Store.Path != def.Store.Path {
		t.Fatalf("expected default store path %q, got %q", def.Store.Path, cfg.Store.Path)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("expected default log config, got %+v", cfg.Log)
	}
	if cfg.Policy.DisconnectGrace != 2*time.Second {
		t.Fatalf("expected default disconnect grace 2s, got %v", cfg.Policy.DisconnectGrace)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeYAML(t, `
adapter:
  name: hci1
store:
  path: /tmp/devmon-test
log:
  level: debug
policy:
  disconnect_grace: 5s
profiles:
  - uuid: "0000110b-0000-1000-8000-00805f9b34fb"
    name: "A2DP Sink"
    priority: 1
    auto_connect: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Adapter.Name != "hci1" {
		t.Fatalf("expected adapter.name=hci1, got %q", cfg.Adapter.Name)
	}
	if cfg.Store.Path != "/tmp/devmon-test" {
		t.Fatalf("expected overridden store path, got %q", cfg.Store.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected log.level=debug, got %q", cfg.Log.Level)
	}
	if cfg.Policy.DisconnectGrace != 5*time.Second {
		t.Fatalf("expected disconnect_grace=5s, got %v", cfg.Policy.DisconnectGrace)
	}
	// Fields left unset by the YAML file must still carry defaults.
	if cfg.Policy.BondingRetryDelay != 3*time.Second {
		t.Fatalf("expected default bonding_retry_delay to survive partial override, got %v", cfg.Policy.BondingRetryDelay)
	}
	if len(cfg.Profiles) != 1 || cfg.Profiles[0].UUID != "0000110b-0000-1000-8000-00805f9b34fb" {
		t.Fatalf("expected one profile entry, got %+v", cfg.Profiles)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeYAML(t, "store:\n  path: /tmp/from-yaml\n")
	t.Setenv("DEVMON_STORE_PATH", "/tmp/from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "/tmp/from-env" {
		t.Fatalf("expected env override to win, got %q", cfg.Store.Path)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatal("expected an error loading a nonexistent config file")
	}
}

func TestValidateRejectsEmptyStorePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Path = ""
	if err := Validate(cfg); err != ErrEmptyStorePath {
		t.Fatalf("expected ErrEmptyStorePath, got %v", err)
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "trace"
	if err := Validate(cfg); err != ErrInvalidLogLevel {
		t.Fatalf("expected ErrInvalidLogLevel, got %v", err)
	}
}

func TestValidateRejectsDuplicateProfileUUID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = []ProfileConfig{
		{UUID: "0000110b-0000-1000-8000-00805f9b34fb", Name: "A"},
		{UUID: "0000110b-0000-1000-8000-00805f9b34fb", Name: "B"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected an error for a duplicate profile UUID")
	}
}

func TestValidateRejectsEmptyProfileUUID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = []ProfileConfig{{Name: "A"}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected an error for an empty profile UUID")
	}
}

func TestDevicePolicyConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.JustWorksRepairingAllowed = true
	p := cfg.DevicePolicy()
	if p.DisconnectGrace != cfg.Policy.DisconnectGrace || p.BondingRetryDelay != cfg.Policy.BondingRetryDelay {
		t.Fatalf("expected DevicePolicy to copy timing fields verbatim, got %+v", p)
	}
	if !p.JustWorksRepairingAllowed {
		t.Fatal("expected JustWorksRepairingAllowed to carry through")
	}
}

func TestProfileTableKeyedByUUID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = []ProfileConfig{
		{UUID: "0000110b-0000-1000-8000-00805f9b34fb", Name: "A2DP Sink", Priority: 1, AutoConnect: true},
	}
	table := cfg.ProfileTable()
	desc, ok := table["0000110b-0000-1000-8000-00805f9b34fb"]
	if !ok {
		t.Fatal("expected the profile to be keyed by its UUID")
	}
	if desc.Name != "A2DP Sink" || !desc.AutoConnect {
		t.Fatalf("expected profile fields to carry through, got %+v", desc)
	}
}
