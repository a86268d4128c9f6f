// Package ollama is the HTTP client for the external model server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"forgeproxy/application/ports"
	apperrors "forgeproxy/pkg/errors"
)

// probeTimeout bounds the health-style calls (version, tags).
const probeTimeout = 5 * time.Second

// Client talks to an Ollama-style API.
type Client struct {
	baseURL string
	model   string

	// httpClient serves bounded request/response calls; streamClient has
	// no client timeout because a generation stream legitimately outlives
	// any fixed deadline. Stream lifetime is governed by the request
	// context instead.
	httpClient   *http.Client
	streamClient *http.Client
	logger       *zap.Logger
}

// NewClient creates a new Ollama client
func NewClient(baseURL, model string, logger *zap.Logger) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	logger.Info("initialized ollama client",
		zap.String("url", baseURL),
		zap.String("model", model),
	)

	return &Client{
		baseURL:      baseURL,
		model:        model,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		streamClient: &http.Client{},
		logger:       logger,
	}
}

// ModelName returns the configured default model.
func (c *Client) ModelName() string {
	return c.model
}

type chatRequest struct {
	Model    string              `json:"model"`
	Messages []ports.ChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Chat performs a blocking chat completion.
func (c *Client) Chat(ctx context.Context, messages []ports.ChatMessage, options map[string]any) (*ports.ChatResult, error) {
	c.logger.Debug("performing chat completion",
		zap.String("model", c.model),
		zap.Int("messageCount", len(messages)),
	)

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  withDefaults(options),
	})
	if err != nil {
		return nil, apperrors.NewInternalError("marshal chat request").WithCause(err)
	}

	resp, err := c.do(ctx, c.httpClient, http.MethodPost, c.baseURL+"/chat", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewExternalError("ollama", fmt.Errorf("decode response: %w", err))
	}

	return &ports.ChatResult{Content: parsed.Message.Content}, nil
}

// StreamChat opens a streaming chat completion and hands back the chunked
// body. Cancelling ctx tears down the upstream connection, which is how a
// client disconnect stops consumption.
func (c *Client) StreamChat(ctx context.Context, messages []ports.ChatMessage, options map[string]any) (io.ReadCloser, error) {
	c.logger.Debug("starting streaming chat completion",
		zap.String("model", c.model),
		zap.Int("messageCount", len(messages)),
	)

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
		Options:  withDefaults(options),
	})
	if err != nil {
		return nil, apperrors.NewInternalError("marshal chat request").WithCause(err)
	}

	resp, err := c.do(ctx, c.streamClient, http.MethodPost, c.baseURL+"/chat", body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := c.do(ctx, c.httpClient, http.MethodGet, c.baseURL+"/version", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.NewExternalError("ollama", fmt.Errorf("decode version: %w", err))
	}
	return parsed.Version, nil
}

// ListModels returns the names of the models the server has loaded.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := c.do(ctx, c.httpClient, http.MethodGet, c.baseURL+"/tags", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewExternalError("ollama", fmt.Errorf("decode tags: %w", err))
	}

	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, method, targetURL string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, reader)
	if err != nil {
		return nil, apperrors.NewExternalError("ollama", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("ollama", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, apperrors.NewExternalError("ollama", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return resp, nil
}

// withDefaults merges caller options over the generation defaults the
// model was tuned for.
func withDefaults(options map[string]any) map[string]any {
	merged := map[string]any{
		"temperature": 0.2,
		"num_predict": 2048,
		"top_p":       0.9,
		"stop":        []string{"</answer>"},
	}
	for k, v := range options {
		merged[k] = v
	}
	return merged
}
