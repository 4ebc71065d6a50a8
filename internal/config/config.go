package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port     string `yaml:"port"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		LeaderboardLimit int    `yaml:"leaderboardLimit"`
		LeaderboardTTL   string `yaml:"leaderboardTTL"`
		CatalogTTL       string `yaml:"catalogTTL"`
		LockTTL          string `yaml:"lockTTL"`
		LockWait         string `yaml:"lockWait"`
	} `yaml:"quiz"`
}

// Default returns a config that runs fully in memory on port 8080.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.LogLevel = "info"
	cfg.Quiz.LeaderboardLimit = 10
	cfg.Quiz.LeaderboardTTL = "30s"
	cfg.Quiz.CatalogTTL = "10m"
	cfg.Quiz.LockTTL = "5s"
	cfg.Quiz.LockWait = "2s"
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
