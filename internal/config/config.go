// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

// Package config loads the recorder configuration from layered sources:
// built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the full recorder configuration.
type Config struct {
	Hub      HubConfig      `koanf:"hub"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Influx   InfluxConfig   `koanf:"influx"`
	Enrich   EnrichConfig   `koanf:"enrich"`
	Ops      OpsConfig      `koanf:"ops"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// HubConfig holds the event source connection settings.
type HubConfig struct {
	URL           string        `koanf:"url"`
	AccessToken   string        `koanf:"access_token"`
	EventTypes    []string      `koanf:"event_types"`
	ReconnectBase time.Duration `koanf:"reconnect_base"`
	ReconnectCap  time.Duration `koanf:"reconnect_cap"`
}

// PipelineConfig tunes the queue, workers, batching and write retries.
type PipelineConfig struct {
	QueueCapacity   int           `koanf:"queue_capacity"`
	EnqueueWait     time.Duration `koanf:"enqueue_wait"`
	Workers         int           `koanf:"workers"`
	EventsPerSecond int           `koanf:"events_per_second"`
	BatchSize       int           `koanf:"batch_size"`
	BatchTimeout    time.Duration `koanf:"batch_timeout"`
	WriteAttempts   int           `koanf:"write_attempts"`
	WriteRetryBase  time.Duration `koanf:"write_retry_base"`
	DrainTimeout    time.Duration `koanf:"drain_timeout"`
}

// InfluxConfig holds the primary time-series store settings.
type InfluxConfig struct {
	URL         string `koanf:"url"`
	Token       string `koanf:"token"`
	Org         string `koanf:"org"`
	Bucket      string `koanf:"bucket"`
	Measurement string `koanf:"measurement"`
}

// EnrichConfig holds the optional secondary normalizer settings. The path
// is active when URL is non-empty.
type EnrichConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// OpsConfig holds the operational HTTP endpoint settings.
type OpsConfig struct {
	Addr string `koanf:"addr"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with production defaults. These are applied
// first, then overridden by file and environment.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			URL:           "",
			AccessToken:   "",
			EventTypes:    []string{"state_changed"},
			ReconnectBase: time.Second,
			ReconnectCap:  60 * time.Second,
		},
		Pipeline: PipelineConfig{
			QueueCapacity:   10000,
			EnqueueWait:     100 * time.Millisecond,
			Workers:         10,
			EventsPerSecond: 1000,
			BatchSize:       100,
			BatchTimeout:    5 * time.Second,
			WriteAttempts:   3,
			WriteRetryBase:  time.Second,
			DrainTimeout:    15 * time.Second,
		},
		Influx: InfluxConfig{
			URL:         "http://127.0.0.1:8086",
			Token:       "",
			Org:         "hearthlog",
			Bucket:      "events",
			Measurement: "entity_state",
		},
		Enrich: EnrichConfig{
			URL:     "",
			Timeout: 10 * time.Second,
		},
		Ops: OpsConfig{
			Addr: ":9120",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for values that would fail at runtime.
// Returns the first problem found with enough context to fix it.
func (c *Config) Validate() error {
	if c.Hub.URL == "" {
		return fmt.Errorf("hub.url is required (HUB_URL)")
	}
	if err := validateHTTPURL(c.Hub.URL, "hub.url"); err != nil {
		return err
	}
	if c.Hub.AccessToken == "" {
		return fmt.Errorf("hub.access_token is required (HUB_ACCESS_TOKEN)")
	}
	if len(c.Hub.EventTypes) == 0 {
		return fmt.Errorf("hub.event_types must list at least one event type")
	}
	if c.Hub.ReconnectBase <= 0 {
		return fmt.Errorf("hub.reconnect_base must be positive, got %s", c.Hub.ReconnectBase)
	}
	if c.Hub.ReconnectCap < c.Hub.ReconnectBase {
		return fmt.Errorf("hub.reconnect_cap (%s) must be >= hub.reconnect_base (%s)",
			c.Hub.ReconnectCap, c.Hub.ReconnectBase)
	}

	if c.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("pipeline.queue_capacity must be positive, got %d", c.Pipeline.QueueCapacity)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.EventsPerSecond <= 0 {
		return fmt.Errorf("pipeline.events_per_second must be positive, got %d", c.Pipeline.EventsPerSecond)
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.BatchTimeout <= 0 {
		return fmt.Errorf("pipeline.batch_timeout must be positive, got %s", c.Pipeline.BatchTimeout)
	}
	if c.Pipeline.WriteAttempts <= 0 {
		return fmt.Errorf("pipeline.write_attempts must be positive, got %d", c.Pipeline.WriteAttempts)
	}

	if c.Influx.URL == "" {
		return fmt.Errorf("influx.url is required (INFLUX_URL)")
	}
	if err := validateHTTPURL(c.Influx.URL, "influx.url"); err != nil {
		return err
	}
	if c.Influx.Bucket == "" {
		return fmt.Errorf("influx.bucket is required (INFLUX_BUCKET)")
	}
	if c.Influx.Org == "" {
		return fmt.Errorf("influx.org is required (INFLUX_ORG)")
	}

	if c.Enrich.URL != "" {
		if err := validateHTTPURL(c.Enrich.URL, "enrich.url"); err != nil {
			return err
		}
	}

	if c.Ops.Addr == "" {
		return fmt.Errorf("ops.addr is required (OPS_ADDR)")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}

	return nil
}

func validateHTTPURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%s must use http(s) or ws(s) scheme, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", field)
	}
	return nil
}

// EnrichEnabled reports whether the secondary write path is configured.
func (c *Config) EnrichEnabled() bool {
	return c.Enrich.URL != ""
}
