// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads service configuration from an optional YAML file
// layered under command-line flags.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Default values for serve flags.
const (
	DefaultHTTPAddr    = "127.0.0.1:8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
)

// Config holds the identity service configuration.
type Config struct {
	// HTTPAddr is the listen address of the public HTTP API.
	HTTPAddr string `koanf:"http-addr"`

	// MetricsAddr is the metrics/health listen address; empty disables it.
	MetricsAddr string `koanf:"metrics-addr"`

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `koanf:"database-url"`

	// LogFormat selects the log handler: "json" or "text".
	LogFormat string `koanf:"log-format"`

	// AutoMigrate applies pending schema migrations on startup.
	AutoMigrate bool `koanf:"auto-migrate"`
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http-addr is required")
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database-url is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	return nil
}

// RegisterFlags declares the service flags with their defaults on the
// given flag set. The same set is later handed to Load so flag values
// override the file.
func RegisterFlags(f *pflag.FlagSet) {
	f.String("http-addr", DefaultHTTPAddr, "HTTP API listen address")
	f.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	f.String("database-url", "", "PostgreSQL connection string")
	f.String("log-format", DefaultLogFormat, "log format (json or text)")
	f.Bool("auto-migrate", false, "apply pending schema migrations on startup")
}

// Load builds a Config from the optional YAML file at path, overlaid with
// any flags the user actually set. Unset flags contribute their defaults
// only for keys the file doesn't define.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "load flags").
			Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
