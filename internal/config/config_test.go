package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MONGO_URI", "MONGOSH_PATH", "SCHEMA_DIR", "EXEC_TIMEOUT",
		"CACHE_SIZE", "SHELL_CONCURRENCY", "WORKERS", "ALLOW_DISK_USE",
		"PREVIEW_CHARS", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "mongosh", cfg.MongoshPath)
	assert.Equal(t, 30*time.Second, cfg.ExecTimeout)
	assert.Equal(t, 4096, cfg.CacheSize)
	assert.EqualValues(t, 4, cfg.ShellConcurrency)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 400, cfg.PreviewChars)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.AllowDiskUse)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	schemaDir := t.TempDir()
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("MONGOSH_PATH", "/opt/mongosh")
	t.Setenv("SCHEMA_DIR", schemaDir)
	t.Setenv("EXEC_TIMEOUT", "5s")
	t.Setenv("CACHE_SIZE", "128")
	t.Setenv("SHELL_CONCURRENCY", "2")
	t.Setenv("WORKERS", "8")
	t.Setenv("ALLOW_DISK_USE", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	assert.Equal(t, "/opt/mongosh", cfg.MongoshPath)
	assert.Equal(t, schemaDir, cfg.SchemaDir)
	assert.Equal(t, 5*time.Second, cfg.ExecTimeout)
	assert.Equal(t, 128, cfg.CacheSize)
	assert.EqualValues(t, 2, cfg.ShellConcurrency)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.AllowDiskUse)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad timeout", "EXEC_TIMEOUT", "soon"},
		{"bad cache size", "CACHE_SIZE", "many"},
		{"bad concurrency", "SHELL_CONCURRENCY", "x"},
		{"missing schema dir", "SCHEMA_DIR", "/definitely/not/a/dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.in}
		assert.Equal(t, tt.expected, cfg.SlogLevel(), "level %q", tt.in)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"# comment\nMQLEVAL_TEST_A=one\nMQLEVAL_TEST_B=\"two words\"\n\nnot-a-pair\n"), 0o644))

	t.Setenv("MQLEVAL_TEST_A", "")
	t.Setenv("MQLEVAL_TEST_B", "")
	// os.Setenv inside LoadDotEnv only fills unset variables; Setenv to
	// empty still counts as unset for its precedence check.
	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "one", os.Getenv("MQLEVAL_TEST_A"))
	assert.Equal(t, "two words", os.Getenv("MQLEVAL_TEST_B"))
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}
