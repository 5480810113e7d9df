// Package config provides configuration loading for fathomd.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// environment variables. Each section maps to one subsystem.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config holds the complete fathomd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Database   DatabaseConfig   `koanf:"database"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Cache      CacheConfig      `koanf:"cache"`
	Search     SearchConfig     `koanf:"search"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// DatabaseConfig holds document store configuration.
type DatabaseConfig struct {
	// Driver selects the store backend: "postgres" or "memory".
	Driver string `koanf:"driver"`
	// URL is the Postgres connection string. Required for the postgres
	// driver; redacted in logs.
	URL Secret `koanf:"url"`
	// MaxConns bounds the connection pool.
	MaxConns int32 `koanf:"max_conns"`
	// ConnectTimeout bounds pool establishment.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	// Migrate runs schema migration on startup.
	Migrate bool `koanf:"migrate"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// Provider is "fastembed" (local ONNX) or "hf" (inference API).
	Provider string `koanf:"provider"`
	// Model is the embedding model name.
	Model string `koanf:"model"`
	// BaseURL overrides the inference API endpoint (hf only).
	BaseURL string `koanf:"base_url"`
	// APIKey is the inference API credential (hf only).
	APIKey Secret `koanf:"api_key"`
	// CacheDir is where local models are downloaded (fastembed only).
	CacheDir string `koanf:"cache_dir"`
	// Dimensions pins the vector dimension. Zero means detect from the
	// model name. Stored documents and queries must all share it.
	Dimensions int `koanf:"dimensions"`
}

// CacheConfig holds result and embedding cache configuration.
type CacheConfig struct {
	TTL                  time.Duration `koanf:"ttl"`
	MaxEntries           int           `koanf:"max_entries"`
	StaleWhileRevalidate bool          `koanf:"stale_while_revalidate"`
}

// SearchConfig holds ranking and resilience settings for the engine.
type SearchConfig struct {
	ResultsPerPage      int           `koanf:"results_per_page"`
	MinSimilarity       float64       `koanf:"min_similarity"`
	MaxQueryLength      int           `koanf:"max_query_length"`
	HighlightLength     int           `koanf:"highlight_length"`
	VectorWeight        float64       `koanf:"vector_weight"`
	TextWeight          float64       `koanf:"text_weight"`
	CandidateMultiplier int           `koanf:"candidate_multiplier"`
	StoreRetryAttempts  int           `koanf:"store_retry_attempts"`
	StoreRetryBaseDelay time.Duration `koanf:"store_retry_base_delay"`
	EmbedTimeout        time.Duration `koanf:"embed_timeout"`
	StoreTimeout        time.Duration `koanf:"store_timeout"`
	LexicalFallback     bool          `koanf:"lexical_fallback"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.ConnectTimeout == 0 {
		cfg.Database.ConnectTimeout = 10 * time.Second
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1024
	}

	if cfg.Search.ResultsPerPage == 0 {
		cfg.Search.ResultsPerPage = 10
	}
	if cfg.Search.MinSimilarity == 0 {
		cfg.Search.MinSimilarity = 0.3
	}
	if cfg.Search.MaxQueryLength == 0 {
		cfg.Search.MaxQueryLength = 500
	}
	if cfg.Search.HighlightLength == 0 {
		cfg.Search.HighlightLength = 300
	}
	if cfg.Search.VectorWeight == 0 && cfg.Search.TextWeight == 0 {
		cfg.Search.VectorWeight = 0.7
		cfg.Search.TextWeight = 0.3
	}
	if cfg.Search.CandidateMultiplier == 0 {
		cfg.Search.CandidateMultiplier = 5
	}
	if cfg.Search.StoreRetryAttempts == 0 {
		cfg.Search.StoreRetryAttempts = 3
	}
	if cfg.Search.StoreRetryBaseDelay == 0 {
		cfg.Search.StoreRetryBaseDelay = 100 * time.Millisecond
	}
	if cfg.Search.EmbedTimeout == 0 {
		cfg.Search.EmbedTimeout = 10 * time.Second
	}
	if cfg.Search.StoreTimeout == 0 {
		cfg.Search.StoreTimeout = 5 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	switch c.Database.Driver {
	case "postgres":
		if !c.Database.URL.IsSet() {
			return errors.New("database URL required for postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid database driver: %q", c.Database.Driver)
	}

	switch c.Embeddings.Provider {
	case "fastembed", "hf":
	default:
		return fmt.Errorf("invalid embeddings provider: %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("invalid embedding dimensions: %d", c.Embeddings.Dimensions)
	}

	if c.Search.ResultsPerPage < 1 {
		return fmt.Errorf("results per page must be positive: %d", c.Search.ResultsPerPage)
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("min similarity must be in [0, 1]: %g", c.Search.MinSimilarity)
	}
	if sum := c.Search.VectorWeight + c.Search.TextWeight; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("vector and text weights must sum to 1, got %g", sum)
	}
	if c.Search.CandidateMultiplier < 1 {
		return fmt.Errorf("candidate multiplier must be positive: %d", c.Search.CandidateMultiplier)
	}

	return nil
}
