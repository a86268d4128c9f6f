package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"forgeproxy/application/ports"
	"forgeproxy/infrastructure/config"
	"forgeproxy/pkg/common"
	"forgeproxy/pkg/utils"
)

// HealthHandler aggregates the health of this service and its upstreams
type HealthHandler struct {
	cfg     *config.Config
	engine  ports.WorkflowEngine
	model   ports.ModelServer
	logger  *zap.Logger
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(cfg *config.Config, engine ports.WorkflowEngine, model ports.ModelServer, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:     cfg,
		engine:  engine,
		model:   model,
		logger:  logger,
		started: time.Now(),
	}
}

// HealthResponse is the aggregate health report
type HealthResponse struct {
	Status      string         `json:"status"`
	Uptime      float64        `json:"uptime"`
	Timestamp   string         `json:"timestamp"`
	Environment string         `json:"environment"`
	Version     string         `json:"version"`
	Services    ServiceReports `json:"services"`
}

// ServiceReports lists per-dependency health
type ServiceReports struct {
	APIProxy APIProxyReport `json:"api_proxy"`
	N8N      N8NReport      `json:"n8n"`
	Ollama   OllamaReport   `json:"ollama"`
}

// APIProxyReport covers the service itself
type APIProxyReport struct {
	Status string `json:"status"`
}

// N8NReport covers the workflow engine
type N8NReport struct {
	URL      string            `json:"url"`
	Status   string            `json:"status"`
	Webhooks map[string]string `json:"webhooks"`
	Error    string            `json:"error,omitempty"`
}

// OllamaReport covers the model server
type OllamaReport struct {
	URL     string       `json:"url"`
	Status  string       `json:"status"`
	Version string       `json:"version,omitempty"`
	Model   *ModelReport `json:"model,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// ModelReport covers availability of the configured model
type ModelReport struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := HealthResponse{
		Status:      "ok",
		Uptime:      time.Since(h.started).Seconds(),
		Timestamp:   utils.NowRFC3339(),
		Environment: h.cfg.Environment,
		Version:     h.cfg.ServiceVersion,
		Services: ServiceReports{
			APIProxy: APIProxyReport{Status: "ok"},
		},
	}

	n8nOK := true
	n8n := N8NReport{
		URL:    h.cfg.N8NURL,
		Status: "ok",
		Webhooks: map[string]string{
			"research":  h.cfg.ResearchWebhook,
			"implement": h.cfg.ImplementWebhook,
		},
	}
	if err := h.engine.CheckReachable(ctx); err != nil {
		h.logger.Warn("n8n health check failed", zap.Error(err))
		n8n.Status = "error"
		n8n.Error = err.Error()
		n8nOK = false
	}
	resp.Services.N8N = n8n

	ollamaOK := true
	ollama := OllamaReport{
		URL:    h.cfg.OllamaURL,
		Status: "ok",
	}
	version, err := h.model.Version(ctx)
	if err != nil {
		h.logger.Warn("ollama health check failed", zap.Error(err))
		ollama.Status = "error"
		ollama.Error = err.Error()
		ollamaOK = false
	} else {
		ollama.Version = version
		ollama.Model = h.checkModel(ctx)
	}
	resp.Services.Ollama = ollama

	status := http.StatusOK
	switch {
	case !n8nOK && !ollamaOK:
		resp.Status = "down"
		status = http.StatusServiceUnavailable
	case !n8nOK || !ollamaOK:
		resp.Status = "degraded"
	}

	common.RespondJSON(w, status, resp)
}

func (h *HealthHandler) checkModel(ctx context.Context) *ModelReport {
	report := &ModelReport{
		Name:   h.cfg.OllamaModel,
		Status: "unknown",
	}

	models, err := h.model.ListModels(ctx)
	if err != nil {
		h.logger.Warn("listing models failed", zap.Error(err))
		return report
	}

	report.Status = "not_found"
	for _, name := range models {
		if strings.Contains(name, h.cfg.OllamaModel) {
			report.Status = "available"
			break
		}
	}
	return report
}
