package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9999
  request_timeout: 5s
database:
  driver: postgres
  url: postgres://fathomd@localhost/fathomd
  migrate: true
embeddings:
  provider: hf
  model: BAAI/bge-large-en-v1.5
  api_key: secret-key
  dimensions: 1024
search:
  min_similarity: 0.5
  lexical_fallback: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://fathomd@localhost/fathomd", cfg.Database.URL.Value())
	assert.True(t, cfg.Database.Migrate)
	assert.Equal(t, "hf", cfg.Embeddings.Provider)
	assert.Equal(t, 1024, cfg.Embeddings.Dimensions)
	assert.Equal(t, "secret-key", cfg.Embeddings.APIKey.Value())
	assert.InDelta(t, 0.5, cfg.Search.MinSimilarity, 1e-9)
	assert.True(t, cfg.Search.LexicalFallback)

	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.Search.ResultsPerPage)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9999
`)
	t.Setenv("FATHOMD_SERVER_HTTP_PORT", "7777")
	t.Setenv("FATHOMD_SEARCH_MIN_SIMILARITY", "0.4")
	t.Setenv("FATHOMD_CACHE_STALE_WHILE_REVALIDATE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.InDelta(t, 0.4, cfg.Search.MinSimilarity, 1e-9)
	assert.True(t, cfg.Cache.StaleWhileRevalidate)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_ValidationFailurePropagates(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL required")
}

func TestEnvToKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"FATHOMD_SERVER_HTTP_PORT", "server.http_port"},
		{"FATHOMD_DATABASE_URL", "database.url"},
		{"FATHOMD_SEARCH_MIN_SIMILARITY", "search.min_similarity"},
		{"FATHOMD_CACHE_TTL", "cache.ttl"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envToKey(tt.in))
	}
}
