package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"forgeproxy/application/ports"
	"forgeproxy/application/streaming"
	"forgeproxy/pkg/common"
	"forgeproxy/pkg/utils"
)

// ChatHandler serves chat completions against the model server
type ChatHandler struct {
	model  ports.ModelServer
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(model ports.ModelServer, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		model:  model,
		logger: logger,
	}
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Messages []ChatMessage  `json:"messages" validate:"required,min=1,dive"`
	Model    string         `json:"model,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// ChatMessage is one conversation turn in a chat request
type ChatMessage struct {
	Role    string `json:"role" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// ChatResponse mirrors the message shape SDK clients expect
type ChatResponse struct {
	ID        string        `json:"id"`
	Model     string        `json:"model"`
	CreatedAt int64         `json:"created_at"`
	Content   []ContentPart `json:"content"`
	Role      string        `json:"role"`
}

// ContentPart is one block of a chat response
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Send handles POST /api/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	h.logger.Info("processing chat message",
		zap.String("model", h.modelName(req)),
		zap.Int("messageCount", len(req.Messages)),
	)

	result, err := h.model.Chat(r.Context(), toPortMessages(req.Messages), req.Options)
	if err != nil {
		h.logger.Error("error processing chat message", zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	content := result.Content
	if content == "" {
		content = "I apologize, but I couldn't generate a response."
	}

	now := time.Now().UnixMilli()
	common.RespondJSON(w, http.StatusOK, ChatResponse{
		ID:        fmt.Sprintf("msg_%d", now),
		Model:     h.modelName(req),
		CreatedAt: now,
		Content:   []ContentPart{{Type: "text", Text: content}},
		Role:      "assistant",
	})
}

// Stream handles POST /api/chat/stream. The relay owns the frame
// sequencing; this handler owns the SSE transport.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	h.logger.Info("processing streaming chat message",
		zap.String("model", h.modelName(req)),
		zap.Int("messageCount", len(req.Messages)),
	)

	// Open the upstream before committing to the event stream, so an
	// unreachable model server still yields a clean JSON error.
	upstream, err := h.model.StreamChat(r.Context(), toPortMessages(req.Messages), req.Options)
	if err != nil {
		h.logger.Error("error starting streaming chat", zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	defer upstream.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		common.RespondError(w, http.StatusInternalServerError, "Streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	relay := streaming.NewRelay(h.modelName(req), h.logger)
	writer := &sseWriter{w: w, flusher: flusher}

	if err := relay.Run(r.Context(), upstream, writer); err != nil {
		// Client disconnects land here too; the request context has
		// already cancelled the upstream call.
		h.logger.Debug("stream relay finished with error", zap.Error(err))
	}
}

func (h *ChatHandler) parseRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return req, false
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return req, false
	}
	return req, true
}

func (h *ChatHandler) modelName(req ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return h.model.ModelName()
}

func toPortMessages(messages []ChatMessage) []ports.ChatMessage {
	out := make([]ports.ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = ports.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// sseWriter frames relay events as server-sent events, flushing after
// every frame so deltas reach the client immediately.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseWriter) WriteFrame(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
