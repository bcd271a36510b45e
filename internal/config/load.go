// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first match
// wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/hearthlog/config.yaml",
	"/etc/hearthlog/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources, lowest priority
// first: defaults, optional YAML file, environment variables. The result
// is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are fields that arrive from the environment as
// comma-separated strings but unmarshal as slices.
var sliceConfigPaths = []string{
	"hub.event_types",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransform maps environment variable names to config paths. Unknown
// variables are dropped so unrelated environment noise never lands in the
// config tree.
//
// Examples:
//   - HUB_URL -> hub.url
//   - BATCH_SIZE -> pipeline.batch_size
//   - INFLUX_BUCKET -> influx.bucket
func envTransform(key string) string {
	envMappings := map[string]string{
		"hub_url":            "hub.url",
		"hub_access_token":   "hub.access_token",
		"hub_event_types":    "hub.event_types",
		"hub_reconnect_base": "hub.reconnect_base",
		"hub_reconnect_cap":  "hub.reconnect_cap",

		"queue_capacity":    "pipeline.queue_capacity",
		"enqueue_wait":      "pipeline.enqueue_wait",
		"worker_count":      "pipeline.workers",
		"events_per_second": "pipeline.events_per_second",
		"batch_size":        "pipeline.batch_size",
		"batch_timeout":     "pipeline.batch_timeout",
		"write_attempts":    "pipeline.write_attempts",
		"write_retry_base":  "pipeline.write_retry_base",
		"drain_timeout":     "pipeline.drain_timeout",

		"influx_url":         "influx.url",
		"influx_token":       "influx.token",
		"influx_org":         "influx.org",
		"influx_bucket":      "influx.bucket",
		"influx_measurement": "influx.measurement",

		"enrichment_url":     "enrich.url",
		"enrichment_timeout": "enrich.timeout",

		"ops_addr": "ops.addr",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}
	return envMappings[strings.ToLower(key)]
}
