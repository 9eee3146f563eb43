// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// parseJSON reads a Config from the JSON file at path.
func parseJSON(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err = json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
	}

	return cfg, nil
}
