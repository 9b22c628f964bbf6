// SPDX-License-Identifier: MIT
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"ledspectrum/internal/log"
)

// searchPaths are tried in order when no configuration file is named.
var searchPaths = []string{
	"ledspectrum.yaml",
	"ledspectrum.yml",
	"ledspectrum.toml",
}

// LoadConfig loads configuration from the YAML or TOML file at path, chosen
// by extension. If path is empty the search paths are tried and built-in
// defaults are used when none exists. Environment overrides are applied next,
// then overrides in order, and the result is validated.
func LoadConfig(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range searchPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		log.Debugf("configuration: loaded %s", path)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
func (cfg *Config) applyEnvOverrides() error {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		log.Debugf("configuration: overriding log_level from env: %s", val)
	}

	// ENV_SERIAL_{...}
	// These are specific to the serial link.

	// ENV_SERIAL_PORT
	if val, ok := os.LookupEnv("ENV_SERIAL_PORT"); ok {
		cfg.Serial.Port = val
		log.Debugf("configuration: overriding serial.port from env: %s", val)
	}
	// ENV_SERIAL_BAUD
	if val, ok := os.LookupEnv("ENV_SERIAL_BAUD"); ok {
		baud, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ENV_SERIAL_BAUD: %w", err)
		}
		cfg.Serial.Baud = baud
		log.Debugf("configuration: overriding serial.baud from env: %d", baud)
	}
	// ENV_DRY_RUN
	if val, ok := os.LookupEnv("ENV_DRY_RUN"); ok {
		dry, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("ENV_DRY_RUN: %w", err)
		}
		cfg.Serial.DryRun = dry
		log.Debugf("configuration: overriding serial.dry_run from env: %v", dry)
	}

	// ENV_AUDIO_BACKEND
	if val, ok := os.LookupEnv("ENV_AUDIO_BACKEND"); ok {
		cfg.Audio.Backend = strings.ToLower(val)
		log.Debugf("configuration: overriding audio.backend from env: %s", val)
	}

	return nil
}
