// Package config loads service configuration from an optional YAML file with
// environment variable overrides. Env always wins so container deployments
// can tweak a baked-in config file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseUrl"`
	RedisURL    string `yaml:"redisUrl"`
	Migrate     bool   `yaml:"migrate"`

	SolveRatePerSec float64 `yaml:"solveRatePerSec"`
	SolveRateBurst  int     `yaml:"solveRateBurst"`
}

func defaults() Config {
	return Config{
		Port:            "8080",
		Migrate:         true,
		SolveRatePerSec: 1,
		SolveRateBurst:  5,
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), then applies env overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("DB_MIGRATE"); v != "" {
		c.Migrate = v != "false"
	}
	if v := os.Getenv("SOLVE_RATE_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.SolveRatePerSec = f
		}
	}
	if v := os.Getenv("SOLVE_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.SolveRateBurst = n
		}
	}
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + c.Port }
