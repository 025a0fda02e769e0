// Package config loads all configuration for the Sparky recommender from
// environment variables and the YAML domain files. Configuration is read
// once at startup; missing required settings are fatal there, never at
// request time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the recommender service.
type Config struct {
	Port    int
	Version string

	Graph      GraphConfig
	Relational RelationalConfig
	Embeddings EmbeddingConfig
	LLM        LLMConfig
	Telemetry  TelemetryConfig
	Engine     EngineConfig

	// YAML domain files, loaded once at startup by internal/vocabulary
	// and internal/intent.
	WeldingProcessesPath string
	ModeDetectionPath    string
}

// GraphConfig configures the Neo4j graph store.
type GraphConfig struct {
	URI      string
	User     string
	Password string
	Database string
	// MaxConnections bounds the driver's connection pool.
	MaxConnections int
	// Timeout applies to every graph call; exceeding it is a stage failure.
	Timeout time.Duration
}

// RelationalConfig configures the Postgres session store.
type RelationalConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	MinConns int
	MaxConns int
}

// URL renders the pgx connection string.
func (c RelationalConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// EmbeddingConfig configures the sentence-embedding driver.
type EmbeddingConfig struct {
	// Kind selects the driver: "ollama" or "openai".
	Kind       string
	Endpoint   string
	APIKey     string
	Model      string
	Dimensions int
}

// LLMConfig configures the chat-completion client used for intent extraction.
type LLMConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// EngineConfig holds the tunable recommendation constants the source kept
// hard-coded.
type EngineConfig struct {
	ExpertMultiplier       float64
	GoldenPackageTarget    int
	PreferredManufacturers []string
	MaxPackages            int
	StageTimeout           time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("SPARKY_PORT", 8080),
		Version: envStr("SPARKY_VERSION", "1.4.0"),
		Graph: GraphConfig{
			URI:            envStr("NEO4J_URI", ""),
			User:           envStr("NEO4J_USER", "neo4j"),
			Password:       envStr("NEO4J_PASSWORD", ""),
			Database:       envStr("NEO4J_DATABASE", "neo4j"),
			MaxConnections: envInt("NEO4J_MAX_CONNECTIONS", 50),
			Timeout:        envDuration("NEO4J_TIMEOUT", 30*time.Second),
		},
		Relational: RelationalConfig{
			Host:     envStr("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Database: envStr("POSTGRES_DB", "sparky"),
			User:     envStr("POSTGRES_USER", "sparky"),
			Password: envStr("POSTGRES_PASSWORD", ""),
			MinConns: envInt("POSTGRES_MIN_CONNECTIONS", 5),
			MaxConns: envInt("POSTGRES_MAX_CONNECTIONS", 20),
		},
		Embeddings: EmbeddingConfig{
			Kind:       envStr("EMBEDDING_KIND", "ollama"),
			Endpoint:   envStr("EMBEDDING_ENDPOINT", "http://localhost:11434"),
			APIKey:     envStr("EMBEDDING_API_KEY", ""),
			Model:      envStr("EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", 384),
		},
		LLM: LLMConfig{
			Endpoint: envStr("LLM_ENDPOINT", "https://api.openai.com/v1"),
			APIKey:   envStr("LLM_API_KEY", ""),
			Model:    envStr("LLM_MODEL", "gpt-4o-mini"),
			Timeout:  envDuration("LLM_TIMEOUT", 30*time.Second),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "sparky-recommender"),
		},
		Engine: EngineConfig{
			ExpertMultiplier:       envFloat("ENGINE_EXPERT_MULTIPLIER", 1.1),
			GoldenPackageTarget:    envInt("ENGINE_GOLDEN_PACKAGE_TARGET", 7),
			PreferredManufacturers: []string{envStr("ENGINE_PREFERRED_MANUFACTURER", "ESAB")},
			MaxPackages:            envInt("ENGINE_MAX_PACKAGES", 12),
			StageTimeout:           envDuration("ENGINE_STAGE_TIMEOUT", 30*time.Second),
		},
		WeldingProcessesPath: envStr("SPARKY_WELDING_PROCESSES", "configs/welding_processes.yaml"),
		ModeDetectionPath:    envStr("SPARKY_MODE_DETECTION", "configs/mode_detection.yaml"),
	}
}

// Validate checks required settings. Called by the serving process; the
// loader CLI only needs the graph settings.
func (c *Config) Validate() error {
	if c.Graph.URI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.Graph.Password == "" {
		return fmt.Errorf("NEO4J_PASSWORD is required")
	}
	if c.LLM.APIKey == "" && !isLocalEndpoint(c.LLM.Endpoint) {
		return fmt.Errorf("LLM_API_KEY is required for endpoint %s", c.LLM.Endpoint)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive")
	}
	if _, err := os.Stat(c.WeldingProcessesPath); err != nil {
		return fmt.Errorf("welding processes config: %w", err)
	}
	if _, err := os.Stat(c.ModeDetectionPath); err != nil {
		return fmt.Errorf("mode detection config: %w", err)
	}
	return nil
}

func isLocalEndpoint(endpoint string) bool {
	return endpoint == "" ||
		len(endpoint) >= 16 && endpoint[:16] == "http://localhost" ||
		len(endpoint) >= 16 && endpoint[:16] == "http://127.0.0.1"
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
