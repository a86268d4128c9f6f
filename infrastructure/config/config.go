package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress  string
	Environment    string
	ServiceVersion string

	// Workflow engine (n8n) configuration
	N8NURL           string
	ResearchWebhook  string
	ImplementWebhook string

	// Model server (Ollama) configuration
	OllamaURL   string
	OllamaModel string

	// ServiceNow configuration, used only for link synthesis
	ServiceNowInstance string

	// Externally reachable base URL of this service, used to build the
	// callback addresses handed to the workflow engine
	APIBaseURL string

	// API security (optional)
	APIKey           string
	EnableAPIKeyAuth bool

	// Operation tracking
	OperationExpiryHours int

	// Logging
	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:  getEnv("SERVER_ADDRESS", ":3000"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServiceVersion: getEnv("SERVICE_VERSION", "unknown"),

		N8NURL:           getEnv("N8N_URL", "http://localhost:5678/webhook"),
		ResearchWebhook:  getEnv("RESEARCH_WEBHOOK", "process-research"),
		ImplementWebhook: getEnv("IMPLEMENT_WEBHOOK", "process-implementation"),

		OllamaURL:   getEnv("OLLAMA_URL", "http://localhost:11434/api"),
		OllamaModel: getEnv("OLLAMA_MODEL", "turboforge-architect"),

		ServiceNowInstance: getEnv("SERVICENOW_INSTANCE", "yourinstance.service-now.com"),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:3000"),

		APIKey:           getEnv("API_KEY", ""),
		EnableAPIKeyAuth: getEnvBool("ENABLE_API_KEY_AUTH", false),

		OperationExpiryHours: getEnvInt("OPERATION_EXPIRY_HOURS", 24),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.N8NURL == "" {
		return fmt.Errorf("N8N_URL is required")
	}
	if c.OllamaURL == "" {
		return fmt.Errorf("OLLAMA_URL is required")
	}
	if c.OperationExpiryHours <= 0 {
		return fmt.Errorf("OPERATION_EXPIRY_HOURS must be positive, got %d", c.OperationExpiryHours)
	}
	if c.EnableAPIKeyAuth && c.APIKey == "" {
		return fmt.Errorf("API_KEY is required when ENABLE_API_KEY_AUTH is set")
	}

	return nil
}

// OperationTTL returns the operation expiry as a duration
func (c *Config) OperationTTL() time.Duration {
	return time.Duration(c.OperationExpiryHours) * time.Hour
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
