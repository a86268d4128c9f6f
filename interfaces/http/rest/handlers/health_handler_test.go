package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"forgeproxy/infrastructure/config"
	apperrors "forgeproxy/pkg/errors"
)

func healthConfig() *config.Config {
	return &config.Config{
		Environment:      "test",
		ServiceVersion:   "1.2.3",
		N8NURL:           "http://n8n.local:5678/webhook",
		ResearchWebhook:  "process-research",
		ImplementWebhook: "process-implementation",
		OllamaURL:        "http://ollama.local:11434/api",
		OllamaModel:      "turboforge-architect",
	}
}

func TestHealthHandler_AllHealthy(t *testing.T) {
	engine := newFakeEngine()
	model := &fakeModel{version: "0.6.1", models: []string{"turboforge-architect:latest", "llama3"}}
	handler := NewHealthHandler(healthConfig(), engine, model, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON(t, rec)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "1.2.3", resp["version"])

	services := resp["services"].(map[string]any)
	n8n := services["n8n"].(map[string]any)
	assert.Equal(t, "ok", n8n["status"])
	assert.Equal(t, "process-research", n8n["webhooks"].(map[string]any)["research"])

	ollama := services["ollama"].(map[string]any)
	assert.Equal(t, "ok", ollama["status"])
	assert.Equal(t, "0.6.1", ollama["version"])
	assert.Equal(t, "available", ollama["model"].(map[string]any)["status"])
}

func TestHealthHandler_ModelMissing(t *testing.T) {
	engine := newFakeEngine()
	model := &fakeModel{version: "0.6.1", models: []string{"llama3"}}
	handler := NewHealthHandler(healthConfig(), engine, model, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp := decodeJSON(t, rec)
	ollama := resp["services"].(map[string]any)["ollama"].(map[string]any)
	assert.Equal(t, "not_found", ollama["model"].(map[string]any)["status"])
}

func TestHealthHandler_Degraded(t *testing.T) {
	engine := newFakeEngine()
	engine.err = apperrors.NewExternalError("n8n", assert.AnError)
	model := &fakeModel{version: "0.6.1", models: []string{"turboforge-architect"}}
	handler := NewHealthHandler(healthConfig(), engine, model, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON(t, rec)
	assert.Equal(t, "degraded", resp["status"])
	assert.Equal(t, "error", resp["services"].(map[string]any)["n8n"].(map[string]any)["status"])
}

func TestHealthHandler_Down(t *testing.T) {
	engine := newFakeEngine()
	engine.err = apperrors.NewExternalError("n8n", assert.AnError)
	model := &fakeModel{versionErr: apperrors.NewExternalError("ollama", assert.AnError)}
	handler := NewHealthHandler(healthConfig(), engine, model, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeJSON(t, rec)
	assert.Equal(t, "down", resp["status"])
}
