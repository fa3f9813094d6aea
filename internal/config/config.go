// Package config provides configuration for the loglens server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls log output and optional file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Config holds the loglens server configuration.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`

	// Database
	DatabaseDSN string `yaml:"database_dsn"`

	// Upload storage
	StorageDir string `yaml:"storage_dir"`

	// Enrichment stages, in call order. Empty means passthrough.
	Plugins       []string      `yaml:"plugins"`
	PluginTimeout time.Duration `yaml:"plugin_timeout"`

	// Ingestion
	BatchSize int `yaml:"batch_size"`

	Logging LoggingConfig `yaml:"logging"`
}

// Load builds the configuration from an optional YAML file (path in
// LOGLENS_CONFIG) overridden by environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:      8080,
		DatabaseDSN:   "file:loglens.db?cache=shared&mode=rwc&_foreign_keys=on",
		StorageDir:    "storage/uploads",
		PluginTimeout: 20 * time.Second,
		BatchSize:     500,
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}

	if path := os.Getenv("LOGLENS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseDSN = getEnv("DATABASE_URL", cfg.DatabaseDSN)
	cfg.StorageDir = getEnv("STORAGE_DIR", cfg.StorageDir)
	if env := os.Getenv("PLUGINS"); env != "" {
		cfg.Plugins = splitAddrs(env)
	}
	if ms := getEnvInt("PLUGIN_TIMEOUT_MS", 0); ms > 0 {
		cfg.PluginTimeout = time.Duration(ms) * time.Millisecond
	}
	cfg.BatchSize = getEnvInt("BATCH_SIZE", cfg.BatchSize)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.File = getEnv("LOG_FILE", cfg.Logging.File)

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return cfg, nil
}

// splitAddrs parses a comma-separated address list, e.g.
// "plugin1:50051,plugin2:50052".
func splitAddrs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
