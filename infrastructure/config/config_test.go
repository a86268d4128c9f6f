package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.ServerAddress)
	assert.Equal(t, "http://localhost:5678/webhook", cfg.N8NURL)
	assert.Equal(t, "process-research", cfg.ResearchWebhook)
	assert.Equal(t, "process-implementation", cfg.ImplementWebhook)
	assert.Equal(t, "http://localhost:11434/api", cfg.OllamaURL)
	assert.Equal(t, "turboforge-architect", cfg.OllamaModel)
	assert.Equal(t, 24, cfg.OperationExpiryHours)
	assert.Equal(t, 24*time.Hour, cfg.OperationTTL())
	assert.False(t, cfg.EnableAPIKeyAuth)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":8080")
	t.Setenv("N8N_URL", "http://n8n.internal/webhook")
	t.Setenv("OPERATION_EXPIRY_HOURS", "48")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "http://n8n.internal/webhook", cfg.N8NURL)
	assert.Equal(t, 48*time.Hour, cfg.OperationTTL())
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfig_AuthRequiresKey(t *testing.T) {
	t.Setenv("ENABLE_API_KEY_AUTH", "true")
	t.Setenv("API_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY")
}

func TestLoadConfig_InvalidExpiry(t *testing.T) {
	t.Setenv("OPERATION_EXPIRY_HOURS", "-1")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPERATION_EXPIRY_HOURS")
}
