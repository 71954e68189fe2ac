// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package support holds the service-level configuration shared by the
// supportd daemon and its route dependencies.
package support

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nevingeorgesunny/support-core-plugin/services/support/task"
)

// Config is the top-level daemon configuration, loaded from YAML.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`

	// ExcludedComponents lists component ids that are dropped from
	// every bundle regardless of what a request selects.
	ExcludedComponents []string `yaml:"excluded_components"`
}

type ServerConfig struct {
	// Port the HTTP listener binds to.
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}

type StorageConfig struct {
	// SpoolRoot holds in-flight task directories. Contents are
	// disposable; they are swept after download.
	SpoolRoot string `yaml:"spool_root" validate:"required"`

	// BundleRoot holds retained named archives.
	BundleRoot string `yaml:"bundle_root" validate:"required"`

	// RetentionDelay is how long a downloaded task bundle stays
	// re-downloadable before its spool directory is removed.
	RetentionDelay Duration `yaml:"retention_delay" validate:"gte=0"`
}

// Duration wraps time.Duration so YAML values can use Go duration
// strings like "30m" or "1h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Dir enables file logging when set. The directory doubles as the
	// source for the LogFiles bundle component.
	Dir string `yaml:"dir"`

	// JSON switches the stderr handler to JSON output.
	JSON bool `yaml:"json"`
}

// DefaultConfig returns a configuration that works with no file at all:
// ephemeral spool under the OS temp dir, bundles next to it, one hour
// of retention.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Storage: StorageConfig{
			SpoolRoot:      task.DefaultSpoolRoot(),
			BundleRoot:     filepath.Join(os.TempDir(), "support-bundles"),
			RetentionDelay: Duration(task.DefaultRetentionDelay),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and validates a YAML config file. Fields the file omits
// keep their defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints on an assembled configuration.
func (c Config) Validate() error {
	return validator.New().Struct(c)
}
