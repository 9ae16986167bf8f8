// Package config loads engine configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Log        LogConfig       `mapstructure:"log"`
	Server     ServerConfig    `mapstructure:"server"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Extraction ModelConfig     `mapstructure:"extraction"`
	Embedding  ModelConfig     `mapstructure:"embedding"`
	Ingestion  IngestionConfig `mapstructure:"ingestion"`
	Search     SearchConfig    `mapstructure:"search"`

	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds graph storage configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // memory, badger, neo4j
	URI      string `mapstructure:"uri"`    // badger path or neo4j bolt URI
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// ModelConfig holds settings for one upstream model endpoint.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"` // openai
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Dimensions  int     `mapstructure:"dimensions"`
}

// IngestionConfig tunes the episode ingestion pipeline.
type IngestionConfig struct {
	// MinConfidence drops extracted entities and relationships below it.
	MinConfidence float64 `mapstructure:"min_confidence"`
	// SimilarityThreshold is the entity-resolution embedding cutoff.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// MaxRetries bounds retries of transient oracle failures.
	MaxRetries int `mapstructure:"max_retries"`
	// EmbedConcurrency bounds parallel embedding calls per episode.
	EmbedConcurrency int `mapstructure:"embed_concurrency"`
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	Limit          int     `mapstructure:"limit"`
	SemanticWeight float64 `mapstructure:"semantic_weight"`
	LexicalWeight  float64 `mapstructure:"lexical_weight"`
	CenterDepth    int     `mapstructure:"center_depth"`
}

// CircuitBreakerConfig holds circuit breaker settings for oracle calls.
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("database.driver", "badger")
	viper.SetDefault("database.uri", "./anamnesis_db")
	viper.SetDefault("database.username", "")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "")

	viper.SetDefault("extraction.provider", "openai")
	viper.SetDefault("extraction.model", "gpt-4o-mini")
	viper.SetDefault("extraction.temperature", 0.0)
	viper.SetDefault("extraction.max_tokens", 2048)

	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)

	viper.SetDefault("ingestion.min_confidence", 0.5)
	viper.SetDefault("ingestion.similarity_threshold", 0.85)
	viper.SetDefault("ingestion.max_retries", 1)
	viper.SetDefault("ingestion.embed_concurrency", 4)

	viper.SetDefault("search.limit", 10)
	viper.SetDefault("search.semantic_weight", 0.5)
	viper.SetDefault("search.lexical_weight", 0.5)
	viper.SetDefault("search.center_depth", 2)

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

// overrideWithEnv overrides config with environment variables.
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Extraction.APIKey = apiKey
		config.Embedding.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Extraction.BaseURL = baseURL
		config.Embedding.BaseURL = baseURL
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.Driver = "neo4j"
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}

	if dbDriver := os.Getenv("DB_DRIVER"); dbDriver != "" {
		config.Database.Driver = dbDriver
	}
	if dbURI := os.Getenv("DB_URI"); dbURI != "" {
		config.Database.URI = dbURI
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}
