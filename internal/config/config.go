// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the evaluation engine configuration.
type Config struct {
	MongoURI         string        // connection string for the native path (default mongodb://localhost:27017)
	MongoshPath      string        // mongosh executable for the fallback path (default "mongosh")
	SchemaDir        string        // directory of per-database schema JSON files (optional)
	ExecTimeout      time.Duration // per-query execution deadline (default 30s)
	CacheSize        int           // result cache capacity in entries (default 4096)
	ShellConcurrency int64         // max concurrent mongosh subprocesses (default 4)
	Workers          int           // comparator workers; 1 keeps the sequential loop (default 1)
	AllowDiskUse     bool          // pass allowDiskUse on native aggregations
	PreviewChars     int           // max chars of result preview in diagnostics (default 400)
	LogLevel         string        // log level: debug, info, warn, error (default "info")

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadFromEnv loads configuration from environment variables. Every
// field has a usable default so the engine can run against a local
// deployment with no environment at all.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoshPath:  os.Getenv("MONGOSH_PATH"),
		SchemaDir:    os.Getenv("SCHEMA_DIR"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		AllowDiskUse: parseBoolEnvDefault("ALLOW_DISK_USE", false),
	}

	if v := os.Getenv("EXEC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("EXEC_TIMEOUT: %w", err)
		}
		cfg.ExecTimeout = d
	}
	if v := os.Getenv("CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("CACHE_SIZE: %w", err)
		}
		cfg.CacheSize = n
	}
	if v := os.Getenv("SHELL_CONCURRENCY"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("SHELL_CONCURRENCY: %w", err)
		}
		cfg.ShellConcurrency = n
	}
	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("PREVIEW_CHARS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PREVIEW_CHARS: %w", err)
		}
		cfg.PreviewChars = n
	}

	// Defaults
	if cfg.MongoURI == "" {
		cfg.MongoURI = "mongodb://localhost:27017"
		cfg.Warnings = append(cfg.Warnings, "MONGO_URI not set — using mongodb://localhost:27017")
	}
	if cfg.MongoshPath == "" {
		cfg.MongoshPath = "mongosh"
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = 30 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	if cfg.ShellConcurrency <= 0 {
		cfg.ShellConcurrency = 4
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = 400
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SchemaDir != "" {
		if info, err := os.Stat(cfg.SchemaDir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("SCHEMA_DIR %q is not a directory", cfg.SchemaDir)
		}
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
