package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j
	Neo4jURI           string
	Neo4jUser          string
	Neo4jPassword      string
	Neo4jDatabase      string
	QueryTimeout       time.Duration // per-operation bound on graph round-trips
	ConnectMaxAttempts int           // startup smoke-test retries

	// Assistant (OpenAI-compatible endpoint used by the marketplace chat helper)
	AssistantBaseURL string
	AssistantAPIKey  string
	AssistantModel   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		Neo4jURI:           getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:          getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:      getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:      getEnv("NEO4J_DATABASE", "neo4j"),
		QueryTimeout:       getEnvDuration("QUERY_TIMEOUT", 15*time.Second),
		ConnectMaxAttempts: getEnvInt("CONNECT_MAX_ATTEMPTS", 5),
		AssistantBaseURL:   getEnv("ASSISTANT_BASE_URL", "http://localhost:4000"),
		AssistantAPIKey:    getEnv("ASSISTANT_API_KEY", ""),
		AssistantModel:     getEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.Neo4jUser == "" {
		return fmt.Errorf("NEO4J_USER is required")
	}
	if c.Neo4jPassword == "" {
		return fmt.Errorf("NEO4J_PASSWORD is required")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive")
	}
	if c.ConnectMaxAttempts < 1 {
		return fmt.Errorf("CONNECT_MAX_ATTEMPTS must be at least 1")
	}
	// Assistant API key is optional for development
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
