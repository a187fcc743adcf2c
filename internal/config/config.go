// Package config loads the plugin host's process-wide configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig carries the token-bucket constants for one channel.
type RateLimitConfig struct {
	Capacity   int     `yaml:"capacity"`
	RefillRate float64 `yaml:"refill_rate_per_second"`
}

// Config is the plugin host's top-level configuration.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	PluginDir string `yaml:"plugin_dir"`

	APICallLimit     RateLimitConfig `yaml:"api_call_limit"`
	StorageWriteLimit RateLimitConfig `yaml:"storage_write_limit"`

	StoragePath string `yaml:"storage_path"`

	SweepCronExpr string `yaml:"sweep_cron_expr"`

	HandoffTimeout time.Duration `yaml:"handoff_timeout"`

	Devtools DevtoolsConfig `yaml:"devtools"`

	CrossPluginCache CrossPluginCacheConfig `yaml:"cross_plugin_cache"`
}

// DevtoolsConfig configures the read-only inspector surface.
type DevtoolsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// CrossPluginCacheConfig configures C10's permission cache backend.
type CrossPluginCacheConfig struct {
	Backend  string `yaml:"backend"` // "memory" or "redis"
	RedisDSN string `yaml:"redis_dsn"`
	TTL      time.Duration `yaml:"ttl"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogPretty: true,
		PluginDir: "./plugins",
		APICallLimit: RateLimitConfig{
			Capacity:   30,
			RefillRate: 5,
		},
		StorageWriteLimit: RateLimitConfig{
			Capacity:   10,
			RefillRate: 1,
		},
		StoragePath:    "./pluginhost.db",
		SweepCronExpr:  "@every 1m",
		HandoffTimeout: 5 * time.Second,
		Devtools: DevtoolsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9191",
		},
		CrossPluginCache: CrossPluginCacheConfig{
			Backend: "memory",
			TTL:     5 * time.Minute,
		},
	}
}

// Load reads configuration from a YAML file, falling back to Default()
// for any field the file does not set.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
