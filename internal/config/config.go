// Package config loads the dock monitor's layered Settings: a base YAML
// file, an optional environment-specific overlay, then APP__-prefixed
// environment variable overrides resolved against the Settings struct's
// yaml tags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	apperrors "dockmonitor/pkg/errors"
	"dockmonitor/pkg/types"

	"gopkg.in/yaml.v2"
)

const envPrefix = "APP"
const envSeparator = "__"

// LoadConfig materializes a Settings tree from baseFile, an optional
// environment overlay named "<base-without-ext>.<env>.yaml" when env is
// non-empty, and APP__-prefixed environment variables. Defaults are applied
// before the overlay/env pass so any unset leaf still has a sane value.
func LoadConfig(baseFile, env string) (*types.Settings, error) {
	cfg := &types.Settings{}
	applyDefaults(cfg)

	if baseFile != "" {
		if err := loadYAMLFile(baseFile, cfg); err != nil {
			return nil, apperrors.FatalConfig("config", "LoadConfig", "failed to load base config").Wrap(err)
		}

		if env != "" {
			overlay := overlayPath(baseFile, env)
			if _, err := os.Stat(overlay); err == nil {
				if err := loadYAMLFile(overlay, cfg); err != nil {
					return nil, apperrors.FatalConfig("config", "LoadConfig", "failed to load environment overlay").Wrap(err)
				}
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlayPath(baseFile, env string) string {
	dir := filepath.Dir(baseFile)
	ext := filepath.Ext(baseFile)
	name := strings.TrimSuffix(filepath.Base(baseFile), ext)
	return filepath.Join(dir, name+"."+env+ext)
}

func loadYAMLFile(path string, cfg *types.Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyDefaults fills the leaves that have documented defaults: plc timing,
// the batch threshold, the log level and the monitoring check interval.
// Everything else defaults to the zero value and is expected from the
// config file.
func applyDefaults(cfg *types.Settings) {
	if cfg.Plc.PollIntervalSecs == 0 {
		cfg.Plc.PollIntervalSecs = 20
	}
	if cfg.Plc.TimeoutMs == 0 {
		cfg.Plc.TimeoutMs = 5000
	}
	if cfg.Plc.MaxRetries == 0 {
		cfg.Plc.MaxRetries = 3
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 25
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Monitoring.CheckInterval == 0 {
		cfg.Monitoring.CheckInterval = 60
	}
}

// applyEnvOverrides walks the Settings struct by its yaml tags, applying any
// APP__SECTION__FIELD environment variable found. Nested structs recurse;
// slices (Plants) are intentionally not addressable via env; they come from
// the file only.
func applyEnvOverrides(cfg *types.Settings) {
	walkEnv(envPrefix, reflect.ValueOf(cfg).Elem())
}

func walkEnv(prefix string, v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + envSeparator + strings.ToUpper(tag)
		fv := v.Field(i)

		switch fv.Kind() {
		case reflect.Struct:
			walkEnv(key, fv)
		case reflect.Slice:
			// Slices of structs (Plants) are file-only; skipped.
			continue
		default:
			if raw, ok := os.LookupEnv(key); ok {
				setScalar(fv, raw)
			}
		}
	}
}

func setScalar(fv reflect.Value, raw string) {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			fv.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			fv.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			fv.SetUint(n)
		}
	}
}

// ValidateConfig enforces the fatal-config class: missing plants, webhook
// URL absent, or a rule file path that isn't set. Runs once at startup,
// before the main loop.
func ValidateConfig(cfg *types.Settings) error {
	if len(cfg.Plants) == 0 {
		return apperrors.FatalConfig("config", "ValidateConfig", "no plants configured")
	}
	for _, p := range cfg.Plants {
		if p.PlantID == "" {
			return apperrors.FatalConfig("config", "ValidateConfig", "plant missing plant_id")
		}
		if p.AlertWebhookURL == "" {
			return apperrors.FatalConfig("config", "ValidateConfig", fmt.Sprintf("plant %s missing alert_webhook_url", p.PlantID))
		}
		if len(p.DockDoors.DockDoorConfig) == 0 {
			return apperrors.FatalConfig("config", "ValidateConfig", fmt.Sprintf("plant %s has no dock doors configured", p.PlantID))
		}
	}
	if cfg.Database.DatabaseName == "" {
		return apperrors.FatalConfig("config", "ValidateConfig", "database.database_name is required")
	}
	if cfg.RuleConfigFile == "" {
		return apperrors.FatalConfig("config", "ValidateConfig", "rule_config_file is required")
	}
	if cfg.Plc.MaxRetries < 0 {
		return apperrors.FatalConfig("config", "ValidateConfig", "plc.max_retries must be >= 0")
	}
	return nil
}
