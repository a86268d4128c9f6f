package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"forgeproxy/application/ports"
	"forgeproxy/domain/operations"
	"forgeproxy/pkg/common"
)

// StatusHandler serves operation status lookups
type StatusHandler struct {
	operations ports.OperationStore
	logger     *zap.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(store ports.OperationStore, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		operations: store,
		logger:     logger,
	}
}

// StatusResponse represents the status of an operation
type StatusResponse struct {
	OperationID string         `json:"operation_id"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	Timestamp   string         `json:"timestamp"`
	Result      map[string]any `json:"result,omitempty"`
	Error       map[string]any `json:"error,omitempty"`
	Progress    map[string]any `json:"progress,omitempty"`
}

// Get handles GET /api/status/{operationID}
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	operationID := chi.URLParam(r, "operationID")

	h.logger.Info("status check requested", zap.String("operationID", operationID))

	op, ok := h.operations.Get(r.Context(), operationID)
	if !ok {
		common.RespondError(w, http.StatusNotFound,
			fmt.Sprintf("No operation found with ID: %s", operationID))
		return
	}

	response := StatusResponse{
		OperationID: op.ID,
		Type:        string(op.Kind),
		Status:      string(op.Status),
		Timestamp:   op.LastUpdatedAt.Format(time.RFC3339),
		Progress:    op.Progress,
	}

	// The full result travels back on completion; the model consuming it
	// needs the complete research data.
	if op.Status == operations.StatusCompleted {
		response.Result = op.Result
	}
	if op.Status == operations.StatusFailed {
		response.Error = op.Error
	}

	common.RespondJSON(w, http.StatusOK, response)
}
