// Package n8n is the HTTP client for the external workflow engine. Jobs
// are posted to per-kind webhooks together with the callback address the
// engine reports back on.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"forgeproxy/application/ports"
	apperrors "forgeproxy/pkg/errors"
)

// DefaultTimeout bounds a single webhook dispatch.
const DefaultTimeout = 30 * time.Second

// Config carries the values the client needs from the environment.
type Config struct {
	// BaseURL is the engine's webhook base, e.g. http://host:5678/webhook
	BaseURL          string
	ResearchWebhook  string
	ImplementWebhook string

	// CallbackBaseURL is this service's externally reachable base URL.
	CallbackBaseURL string

	Timeout time.Duration
}

// Client dispatches jobs to n8n webhooks.
type Client struct {
	baseURL          string
	researchWebhook  string
	implementWebhook string
	callbackBaseURL  string
	httpClient       *http.Client
	logger           *zap.Logger
}

// NewClient creates a new n8n client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger.Info("initialized n8n client", zap.String("url", baseURL))

	return &Client{
		baseURL:          baseURL,
		researchWebhook:  cfg.ResearchWebhook,
		implementWebhook: cfg.ImplementWebhook,
		callbackBaseURL:  strings.TrimSuffix(cfg.CallbackBaseURL, "/"),
		httpClient:       &http.Client{Timeout: timeout},
		logger:           logger,
	}
}

// TriggerResearch posts a research job to the engine's research webhook.
func (c *Client) TriggerResearch(ctx context.Context, job ports.ResearchJob) error {
	webhookURL := c.baseURL + c.researchWebhook

	c.logger.Info("triggering research workflow",
		zap.String("url", webhookURL),
		zap.String("operationID", job.OperationID),
		zap.String("processType", job.ProcessType),
	)

	payload := map[string]any{
		"operationId":            job.OperationID,
		"processType":            job.ProcessType,
		"industry":               job.Industry,
		"additionalRequirements": job.AdditionalRequirements,
		"callbackUrl":            c.CallbackURL(job.OperationID, "research"),
	}

	if err := c.post(ctx, webhookURL, payload); err != nil {
		return apperrors.NewExternalError("n8n", err)
	}

	c.logger.Debug("research workflow triggered", zap.String("operationID", job.OperationID))
	return nil
}

// TriggerImplement posts an implementation job to the engine's
// implementation webhook. The process definition travels verbatim.
func (c *Client) TriggerImplement(ctx context.Context, job ports.ImplementJob) error {
	webhookURL := c.baseURL + c.implementWebhook

	c.logger.Info("triggering implementation workflow",
		zap.String("url", webhookURL),
		zap.String("operationID", job.OperationID),
	)

	payload := map[string]any{
		"operationId":       job.OperationID,
		"processDefinition": job.ProcessDefinition,
		"callbackUrl":       c.CallbackURL(job.OperationID, "implement"),
	}

	if err := c.post(ctx, webhookURL, payload); err != nil {
		return apperrors.NewExternalError("n8n", err)
	}

	c.logger.Debug("implementation workflow triggered", zap.String("operationID", job.OperationID))
	return nil
}

// CheckReachable probes the engine host. Any response below 500 counts as
// reachable, since webhook-only deployments reject GETs on the base path.
func (c *Client) CheckReachable(ctx context.Context) error {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return apperrors.NewExternalError("n8n", err)
	}
	probeURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return apperrors.NewExternalError("n8n", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewExternalError("n8n", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return apperrors.NewExternalError("n8n", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

// CallbackURL builds the address the engine calls back on completion.
func (c *Client) CallbackURL(operationID, kind string) string {
	return fmt.Sprintf("%s/api/callback/%s/%s", c.callbackBaseURL, kind, operationID)
}

// post sends a JSON payload and treats any non-2xx response as a failure.
// The response body is ignored beyond acknowledging the dispatch.
func (c *Client) post(ctx context.Context, targetURL string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
