package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// config holds flintctl's own defaults, applied to newly created tables
// before CREATE TABLE options override them. It is optional: a missing
// file yields the zero value and create falls back to schema defaults.
type config struct {
	DefaultStorage   string `json:"default_storage,omitempty"`
	DefaultCacheSize int    `json:"default_cache_size,omitempty"`
}

// loadConfig reads path as JWCC (JSON with comments and trailing
// commas), the format tailscale/hujson tolerates, and decodes it into a
// config. A missing file is not an error; it yields the zero value.
func loadConfig(path string) (config, error) {
	if path == "" {
		return config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config{}, nil
		}

		return config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return config{}, fmt.Errorf("config %s is not valid JWCC: %w", path, err)
	}

	var cfg config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return config{}, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}
