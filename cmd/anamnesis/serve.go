package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundprediction/anamnesis"
	"github.com/soundprediction/anamnesis/pkg/config"
	"github.com/soundprediction/anamnesis/pkg/driver"
	"github.com/soundprediction/anamnesis/pkg/embedder"
	"github.com/soundprediction/anamnesis/pkg/logger"
	"github.com/soundprediction/anamnesis/pkg/oracle"
	"github.com/soundprediction/anamnesis/pkg/server"
	"github.com/soundprediction/anamnesis/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the anamnesis HTTP server",
	Long: `Start the anamnesis HTTP server.

The server provides endpoints for creating users, ingesting session
episodes, querying user profiles, and deleting user data. Configuration
comes from a config file, environment variables, or flags.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "Server host")
	serveCmd.Flags().Int("port", 8080, "Server port")
	serveCmd.Flags().String("mode", "release", "Server mode (debug, release, test)")

	serveCmd.Flags().String("db-driver", "badger", "Database driver (memory, badger, neo4j)")
	serveCmd.Flags().String("db-uri", "./anamnesis_db", "Database URI or path")
	serveCmd.Flags().String("db-username", "", "Database username (neo4j only)")
	serveCmd.Flags().String("db-password", "", "Database password (neo4j only)")

	serveCmd.Flags().String("extraction-model", "gpt-4o-mini", "Extraction model")
	serveCmd.Flags().String("embedding-model", "text-embedding-3-small", "Embedding model")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.mode", serveCmd.Flags().Lookup("mode"))
	viper.BindPFlag("database.driver", serveCmd.Flags().Lookup("db-driver"))
	viper.BindPFlag("database.uri", serveCmd.Flags().Lookup("db-uri"))
	viper.BindPFlag("database.username", serveCmd.Flags().Lookup("db-username"))
	viper.BindPFlag("database.password", serveCmd.Flags().Lookup("db-password"))
	viper.BindPFlag("extraction.model", serveCmd.Flags().Lookup("extraction-model"))
	viper.BindPFlag("embedding.model", serveCmd.Flags().Lookup("embedding-model"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)

	ctx := context.Background()
	drv, err := openDriver(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	engine, err := buildEngine(cfg, drv, log)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	srv := server.New(cfg, engine, log)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case sig := <-sigChan:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	return engine.Close(shutdownCtx)
}

func openDriver(ctx context.Context, cfg *config.Config) (driver.Driver, error) {
	switch cfg.Database.Driver {
	case "memory":
		return driver.NewMemoryDriver(), nil
	case "badger":
		return driver.NewBadgerDriver(cfg.Database.URI)
	case "neo4j":
		drv, err := driver.NewNeo4jDriver(ctx, driver.Neo4jConfig{
			URI:      cfg.Database.URI,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
		})
		if err != nil {
			return nil, err
		}
		if err := drv.CreateIndices(ctx); err != nil {
			return nil, err
		}
		return drv, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func buildEngine(cfg *config.Config, drv driver.Driver, log *slog.Logger) (anamnesis.Engine, error) {
	retryCfg := oracle.RetryConfig{MaxRetries: cfg.Ingestion.MaxRetries}

	var extractor oracle.Extractor = oracle.NewOpenAIExtractor(oracle.Config{
		Provider:    cfg.Extraction.Provider,
		Model:       cfg.Extraction.Model,
		APIKey:      cfg.Extraction.APIKey,
		BaseURL:     cfg.Extraction.BaseURL,
		Temperature: cfg.Extraction.Temperature,
		MaxTokens:   cfg.Extraction.MaxTokens,
	})
	extractor = oracle.NewRetryExtractor(extractor, retryCfg)
	if cfg.CircuitBreaker.Enabled {
		extractor = oracle.NewBreakerExtractor(extractor, oracle.BreakerConfig{
			Enabled:          true,
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
			Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
			ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
		}, log)
	}

	var emb embedder.Client = embedder.NewOpenAIClient(embedder.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	emb = embedder.NewRetryClient(emb, retryCfg)

	return anamnesis.NewClient(drv, extractor, emb, &anamnesis.Config{
		MinConfidence:       cfg.Ingestion.MinConfidence,
		SimilarityThreshold: cfg.Ingestion.SimilarityThreshold,
		EmbedConcurrency:    cfg.Ingestion.EmbedConcurrency,
		Search: &types.SearchConfig{
			Limit:          cfg.Search.Limit,
			SemanticWeight: cfg.Search.SemanticWeight,
			LexicalWeight:  cfg.Search.LexicalWeight,
			CenterDepth:    cfg.Search.CenterDepth,
		},
	}, log)
}
