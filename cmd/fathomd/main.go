// Fathomd is a document search daemon: hybrid vector and keyword search
// over an ingested document corpus, served as a JSON HTTP API.
//
// Configuration is layered: defaults, then a YAML file, then FATHOMD_*
// environment variables. See internal/config for the full surface.
//
// Usage:
//
//	# Start with defaults (in-memory store, local embedding model)
//	fathomd
//
//	# Start against Postgres
//	FATHOMD_DATABASE_DRIVER=postgres \
//	FATHOMD_DATABASE_URL=postgres://fathomd@localhost/fathomd fathomd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fathomlabs/fathomd/internal/cache"
	"github.com/fathomlabs/fathomd/internal/config"
	"github.com/fathomlabs/fathomd/internal/docstore"
	"github.com/fathomlabs/fathomd/internal/embeddings"
	httpserver "github.com/fathomlabs/fathomd/internal/http"
	"github.com/fathomlabs/fathomd/internal/ingest"
	"github.com/fathomlabs/fathomd/internal/logging"
	"github.com/fathomlabs/fathomd/internal/search"
	"github.com/fathomlabs/fathomd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  fathomd           Start the search daemon\n")
			fmt.Fprintf(os.Stderr, "  fathomd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("fathomd by Fathom Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the fathomd server and blocks until the context is
// cancelled:
//
//  1. Loads and validates configuration
//  2. Initializes the logger
//  3. Opens the document store (Postgres or in-memory)
//  4. Creates the embedding provider (lazy: the model loads on first use)
//  5. Wires the caches, search engine and ingestion pipeline
//  6. Starts the HTTP server
//  7. Performs graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting fathomd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Driver),
		zap.String("embeddings", cfg.Embeddings.Provider))

	tel, err := telemetry.Setup("fathomd", version)
	if err != nil {
		logger.Warn("telemetry setup failed, metrics disabled", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:   cfg.Embeddings.Provider,
		Model:      cfg.Embeddings.Model,
		BaseURL:    cfg.Embeddings.BaseURL,
		APIKey:     cfg.Embeddings.APIKey.Value(),
		CacheDir:   cfg.Embeddings.CacheDir,
		Dimensions: cfg.Embeddings.Dimensions,
	})
	if err != nil {
		return fmt.Errorf("creating embedding provider: %w", err)
	}
	defer provider.Close()

	instrumented := embeddings.NewInstrumentedProvider(provider, cfg.Embeddings.Model, embeddings.NewMetrics(logger))

	store, err := openStore(ctx, cfg, provider.Dimension(), logger)
	if err != nil {
		return fmt.Errorf("opening document store: %w", err)
	}
	defer store.Close()

	results := cache.New(cache.Config{
		TTL:                  cfg.Cache.TTL,
		MaxEntries:           cfg.Cache.MaxEntries,
		StaleWhileRevalidate: cfg.Cache.StaleWhileRevalidate,
	}, logger.Named("result-cache"))
	vectors := cache.New(cache.Config{
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	}, logger.Named("vector-cache"))

	engine := search.NewEngine(store, instrumented, results, vectors, search.Config{
		ResultsPerPage:      cfg.Search.ResultsPerPage,
		MinSimilarity:       cfg.Search.MinSimilarity,
		MaxQueryLength:      cfg.Search.MaxQueryLength,
		HighlightLength:     cfg.Search.HighlightLength,
		VectorWeight:        cfg.Search.VectorWeight,
		TextWeight:          cfg.Search.TextWeight,
		CandidateMultiplier: cfg.Search.CandidateMultiplier,
		StoreRetryAttempts:  cfg.Search.StoreRetryAttempts,
		StoreRetryBaseDelay: cfg.Search.StoreRetryBaseDelay,
		EmbedTimeout:        cfg.Search.EmbedTimeout,
		StoreTimeout:        cfg.Search.StoreTimeout,
		LexicalFallback:     cfg.Search.LexicalFallback,
	}, logger.Named("search"), nil)

	pipeline := ingest.NewPipeline(store, instrumented, logger.Named("ingest"), results.Clear)

	srv, err := httpserver.NewServer(engine, pipeline, store, logger.Named("http"), &httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore creates the configured document store backend.
func openStore(ctx context.Context, cfg *config.Config, dimensions int, logger *zap.Logger) (docstore.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		store, err := docstore.NewPostgresStore(ctx, docstore.PostgresConfig{
			URL:            cfg.Database.URL.Value(),
			Dimensions:     dimensions,
			MaxConns:       cfg.Database.MaxConns,
			ConnectTimeout: cfg.Database.ConnectTimeout,
		}, logger.Named("docstore"))
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := store.Migrate(ctx); err != nil {
				store.Close()
				return nil, err
			}
		}
		return store, nil
	case "memory":
		return docstore.NewMemoryStore(dimensions), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %q", cfg.Database.Driver)
	}
}
