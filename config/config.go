// Package config manages devmon daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete devmon daemon configuration.
type Config struct {
	Adapter AdapterConfig   `koanf:"adapter"`
	Store   StoreConfig     `koanf:"store"`
	Log     LogConfig       `koanf:"log"`
	Policy  PolicyConfig    `koanf:"policy"`
	Profiles []ProfileConfig `koanf:"profiles"`
}

// AdapterConfig names which local controller to drive.
type AdapterConfig struct {
	// Name is the adapter's hci identifier, e.g. "hci0". Empty means "first
	// adapter found".
	Name string `koanf:"name"`
}

// StoreConfig configures the on-disk persistence tree.
type StoreConfig struct {
	// Path is the root directory device keyfiles are kept under.
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// PolicyConfig holds the tunable timing table device.Policy is built from.
type PolicyConfig struct {
	DisconnectGrace           time.Duration `koanf:"disconnect_grace"`
	BondingRetryDelay         time.Duration `koanf:"bonding_retry_delay"`
	TemporaryTTL              time.Duration `koanf:"temporary_ttl"`
	AutoDiscoveryDeferral     time.Duration `koanf:"auto_discovery_deferral"`
	NameResolveRetryDelay     time.Duration `koanf:"name_resolve_retry_delay"`
	JustWorksRepairingAllowed bool          `koanf:"just_works_repairing_allowed"`
}

// ProfileConfig declares one registered profile capability-table entry.
type ProfileConfig struct {
	UUID        string `koanf:"uuid"`
	Name        string `koanf:"name"`
	Priority    int    `koanf:"priority"`
	AutoConnect bool   `koanf:"auto_connect"`
	Internal    bool   `koanf:"internal"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Adapter: AdapterConfig{Name: ""},
		Store:   StoreConfig{Path: "/var/lib/devmon"},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Policy: PolicyConfig{
			DisconnectGrace:           2 * time.Second,
			BondingRetryDelay:         3 * time.Second,
			TemporaryTTL:              30 * time.Second,
			AutoDiscoveryDeferral:     1 * time.Second,
			NameResolveRetryDelay:     15 * time.Second,
			JustWorksRepairingAllowed: false,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for devmon configuration.
// Variables are named DEVMON_<section>_<key>, e.g. DEVMON_STORE_PATH.
const envPrefix = "DEVMON_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (DEVMON_ prefix), and merges on top of DefaultConfig().
// path may be empty, in which case only defaults and environment overrides
// apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms DEVMON_STORE_PATH -> store.path and
// DEVMON_POLICY_DISCONNECT_GRACE -> policy.disconnect_grace: only the first
// underscore separates the section from the key.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"adapter.name":                         defaults.Adapter.Name,
		"store.path":                           defaults.Store.Path,
		"log.level":                            defaults.Log.Level,
		"log.format":                           defaults.Log.Format,
		"policy.disconnect_grace":              defaults.Policy.DisconnectGrace.String(),
		"policy.bonding_retry_delay":            defaults.Policy.BondingRetryDelay.String(),
		"policy.temporary_ttl":                 defaults.Policy.TemporaryTTL.String(),
		"policy.auto_discovery_deferral":        defaults.Policy.AutoDiscoveryDeferral.String(),
		"policy.name_resolve_retry_delay":       defaults.Policy.NameResolveRetryDelay.String(),
		"policy.just_works_repairing_allowed":   defaults.Policy.JustWorksRepairingAllowed,
	}
	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

var (
	// ErrEmptyStorePath indicates the store path is empty.
	ErrEmptyStorePath = errors.New("store.path must not be empty")

	// ErrInvalidLogLevel indicates an unrecognized log level string.
	ErrInvalidLogLevel = errors.New("log.level must be one of debug, info, warn, error")

	// ErrInvalidProfileUUID indicates a profile entry has no UUID.
	ErrInvalidProfileUUID = errors.New("profiles[].uuid must not be empty")

	// ErrDuplicateProfileUUID indicates two profile entries share a UUID.
	ErrDuplicateProfileUUID = errors.New("duplicate profile uuid")
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.Store.Path == "" {
		return ErrEmptyStorePath
	}
	if !validLogLevels[cfg.Log.Level] {
		return ErrInvalidLogLevel
	}
	return validateProfiles(cfg.Profiles)
}

func validateProfiles(profiles []ProfileConfig) error {
	seen := make(map[string]struct{}, len(profiles))
	for i, p := range profiles {
		if p.UUID == "" {
			return fmt.Errorf("profiles[%d]: %w", i, ErrInvalidProfileUUID)
		}
		if _, ok := seen[p.UUID]; ok {
			return fmt.Errorf("profiles[%d] uuid %q: %w", i, p.UUID, ErrDuplicateProfileUUID)
		}
		seen[p.UUID] = struct{}{}
	}
	return nil
}
