package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"forgeproxy/application/services"
	"forgeproxy/domain/operations"
	"forgeproxy/pkg/common"
	"forgeproxy/pkg/utils"
)

// CallbackHandler receives workflow-engine callbacks. These arrive
// unauthenticated and possibly late or repeated; the reconciler absorbs
// both.
type CallbackHandler struct {
	callbacks *services.CallbackService
	logger    *zap.Logger
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(callbacks *services.CallbackService, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		callbacks: callbacks,
		logger:    logger,
	}
}

// CallbackRequest represents the body the workflow engine posts back
type CallbackRequest struct {
	Success bool           `json:"success"`
	Result  map[string]any `json:"result,omitempty"`
	Error   any            `json:"error,omitempty"`
}

// CallbackAck acknowledges a processed callback to the engine
type CallbackAck struct {
	Message     string `json:"message"`
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
}

// HandleResearch handles POST /api/callback/research/{operationID}
func (h *CallbackHandler) HandleResearch(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.callbacks.ProcessResearchCallback)
}

// HandleImplement handles POST /api/callback/implement/{operationID}
func (h *CallbackHandler) HandleImplement(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.callbacks.ProcessImplementCallback)
}

type reconcileFunc func(ctx context.Context, data services.CallbackData) (bool, error)

func (h *CallbackHandler) handle(w http.ResponseWriter, r *http.Request, reconcile reconcileFunc) {
	operationID := chi.URLParam(r, "operationID")

	var req CallbackRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	h.logger.Info("received callback",
		zap.String("operationID", operationID),
		zap.Bool("success", req.Success),
		zap.Bool("hasResult", req.Result != nil),
		zap.Bool("hasError", req.Error != nil),
	)

	processed, err := reconcile(r.Context(), services.CallbackData{
		OperationID: operationID,
		Success:     req.Success,
		Result:      req.Result,
		Error:       req.Error,
	})
	if err != nil {
		h.logger.Error("error processing callback",
			zap.String("operationID", operationID),
			zap.Error(err),
		)
		common.RespondError(w, http.StatusInternalServerError,
			"An unexpected error occurred while processing callback")
		return
	}
	if !processed {
		common.RespondError(w, http.StatusNotFound,
			fmt.Sprintf("No operation found with ID: %s", operationID))
		return
	}

	status := operations.StatusCompleted
	if !req.Success {
		status = operations.StatusFailed
	}

	common.RespondJSON(w, http.StatusOK, CallbackAck{
		Message:     "Callback processed successfully",
		OperationID: operationID,
		Status:      string(status),
		Timestamp:   utils.NowRFC3339(),
	})
}
