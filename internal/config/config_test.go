package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{"DATABASE_URL", "DATABASE_TYPE", "OTEL_EXPORTER_OTLP_ENDPOINT", "SERVICE_NAME"}

// unsetEnv clears the variables Load reads for the duration of the test.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t)

	cfg, rest, err := Load([]string{"list", "books"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"list", "books"}, rest)
	assert.Equal(t, Config{
		DatabaseURL:  DefaultPostgresURL,
		DatabaseType: "postgres",
		ServiceName:  DefaultServiceName,
		LogLevel:     slog.LevelInfo,
	}, cfg)
}

func TestLoadEnvVars(t *testing.T) {
	unsetEnv(t)
	t.Setenv("DATABASE_URL", "file:catalog.db")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	t.Setenv("SERVICE_NAME", "catalog-test")

	cfg, _, err := Load(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "file:catalog.db", cfg.DatabaseURL)
	assert.Equal(t, "sqlite", cfg.DatabaseType, "type is inferred from the URL")
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
	assert.Equal(t, "catalog-test", cfg.ServiceName)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	unsetEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("DATABASE_TYPE", "postgres")

	cfg, rest, err := Load([]string{"-d", "test.db", "-t", "SQLite", "-v", "migrate"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "test.db", cfg.DatabaseURL)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"migrate"}, rest)
}

func TestLoadSQLiteDefaultPath(t *testing.T) {
	unsetEnv(t)

	cfg, _, err := Load([]string{"-t", "sqlite"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, DefaultSQLitePath, cfg.DatabaseURL)
}

func TestLoadEnvFile(t *testing.T) {
	unsetEnv(t)
	t.Setenv("SERVICE_NAME", "from-environment")

	path := filepath.Join(t.TempDir(), "catalog.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"DATABASE_URL=host=db user=catalog dbname=catalog\nSERVICE_NAME=from-file\n"), 0o600))

	cfg, _, err := Load([]string{"-env-file", path}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "host=db user=catalog dbname=catalog", cfg.DatabaseURL)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "from-environment", cfg.ServiceName, "the environment wins over the file")
}

func TestLoadErrors(t *testing.T) {
	unsetEnv(t)

	_, _, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")}, io.Discard)
	assert.ErrorContains(t, err, "missing.env")

	_, _, err = Load([]string{"-t", "mysql"}, io.Discard)
	assert.ErrorContains(t, err, `unsupported database type "mysql"`)

	_, _, err = Load([]string{"-no-such-flag"}, io.Discard)
	assert.Error(t, err)
}

func TestInferType(t *testing.T) {
	tests := map[string]string{
		"":                                  "postgres",
		"postgres://u:p@localhost/db":       "postgres",
		"postgresql://localhost/db":         "postgres",
		"host=localhost port=5432 dbname=x": "postgres",
		"catalog.db":                        "sqlite",
		"file:catalog.db?cache=shared":      "sqlite",
		":memory:":                          "sqlite",
	}
	for url, want := range tests {
		assert.Equal(t, want, inferType(url), url)
	}
}
