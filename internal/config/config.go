// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

// Package config assembles the engine configuration from environment
// variables and an optional JSON file.
//
// Sources are merged in priority order (environment first, then the JSON
// file, then built-in defaults) using mergo, and the merged result is
// validated before use.
package config

import (
	"fmt"
	"time"

	"dario.cat/mergo"
)

// Server holds transport endpoints and timeouts.
type Server struct {
	// WSURL is the websocket endpoint of the sync server.
	WSURL string `json:"ws_url" env:"JOTLINE_WS_URL"`
	// HTTPURL is the base URL of the web server used for token requests.
	HTTPURL string `json:"http_url" env:"JOTLINE_HTTP_URL"`
	// RequestTimeout is the default timeout for outbound HTTP requests.
	RequestTimeout time.Duration `json:"request_timeout" env:"JOTLINE_REQUEST_TIMEOUT"`
}

// Storage holds local replica database settings.
type Storage struct {
	// DSN is the SQLite connection string of the local replica. An empty
	// DSN selects the in-memory store.
	DSN string `json:"dsn" env:"JOTLINE_DB_DSN"`
	// Dir is the replica directory shared between sibling contexts; the
	// broadcaster's notify slot lives here.
	Dir string `json:"dir" env:"JOTLINE_DIR"`
}

// Sync holds engine timing settings.
type Sync struct {
	// CommitDebounce is the pause between a local mutation and the diff
	// cycle that turns it into a commit.
	CommitDebounce time.Duration `json:"commit_debounce" env:"JOTLINE_COMMIT_DEBOUNCE"`
	// RetryInterval is how long an in-flight commit may stay
	// unacknowledged before its tag is reclaimed and the record returns
	// to dirty.
	RetryInterval time.Duration `json:"retry_interval" env:"JOTLINE_RETRY_INTERVAL"`
	// CommitInterval drives the periodic commit job that flushes queued
	// edits after reconnects.
	CommitInterval time.Duration `json:"commit_interval" env:"JOTLINE_COMMIT_INTERVAL"`
}

// Config is the top-level engine configuration.
type Config struct {
	Server  Server  `json:"server"`
	Storage Storage `json:"storage"`
	Sync    Sync    `json:"sync"`
}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		Server: Server{
			WSURL:          "wss://localhost:8443/sync",
			HTTPURL:        "https://localhost:8443",
			RequestTimeout: 15 * time.Second,
		},
		Sync: Sync{
			CommitDebounce: 300 * time.Millisecond,
			RetryInterval:  30 * time.Second,
			CommitInterval: time.Minute,
		},
	}
}

// Load builds the configuration: environment variables win over the JSON
// file at jsonPath (skipped when empty), which wins over defaults.
func Load(jsonPath string) (Config, error) {
	cfg := Config{}

	if err := parseEnv(&cfg); err != nil {
		return Config{}, err
	}

	if jsonPath != "" {
		fileCfg, err := parseJSON(jsonPath)
		if err != nil {
			return Config{}, err
		}
		if err := mergo.Merge(&cfg, fileCfg); err != nil {
			return Config{}, fmt.Errorf("error merging configs: %w", err)
		}
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, fmt.Errorf("error merging default config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Server.WSURL == "" {
		return fmt.Errorf("config: %w", ErrNoSyncEndpoint)
	}
	if c.Sync.RetryInterval <= 0 {
		return fmt.Errorf("config: %w", ErrBadInterval)
	}
	if c.Sync.CommitDebounce <= 0 || c.Sync.CommitInterval <= 0 {
		return fmt.Errorf("config: %w", ErrBadInterval)
	}
	return nil
}
