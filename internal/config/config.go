// # internal/config/config.go
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Store         Store         `toml:"store"`
	Tree          Tree          `toml:"tree"`
	Maintenance   Maintenance   `toml:"maintenance"`
	Observability Observability `toml:"observability"`
}

type Store struct {
	Path        string `toml:"path"`
	Table       string `toml:"table"`
	PathColumn  string `toml:"path_column"`
	DepthColumn string `toml:"depth_column"`
}

type Tree struct {
	OrphanStrategy string `toml:"orphan_strategy"`
	CacheDepth     bool   `toml:"cache_depth"`
}

type Maintenance struct {
	// WriteRate caps raw maintenance writes per second; zero is unlimited.
	WriteRate  float64 `toml:"write_rate"`
	WriteBurst int     `toml:"write_burst"`
}

type Observability struct {
	// MetricsAddr enables the /metrics and /health listener when set.
	MetricsAddr string `toml:"metrics_addr"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./data/forestry.db"
	}
	if cfg.Store.Table == "" {
		cfg.Store.Table = "nodes"
	}
	if cfg.Store.PathColumn == "" {
		cfg.Store.PathColumn = "ancestry"
	}
	if cfg.Store.DepthColumn == "" {
		cfg.Store.DepthColumn = "ancestry_depth"
	}
	if cfg.Tree.OrphanStrategy == "" {
		cfg.Tree.OrphanStrategy = "rootify"
	}
	if cfg.Maintenance.WriteBurst == 0 {
		cfg.Maintenance.WriteBurst = 32
	}
}
