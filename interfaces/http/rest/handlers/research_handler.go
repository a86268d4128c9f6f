package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"forgeproxy/application/ports"
	"forgeproxy/domain/operations"
	"forgeproxy/pkg/common"
	"forgeproxy/pkg/utils"
)

// maxBodyBytes limits every JSON request body.
const maxBodyBytes = 1 << 20

// dispatchTimeout bounds the detached webhook dispatch.
const dispatchTimeout = 30 * time.Second

// ResearchHandler handles research operation requests
type ResearchHandler struct {
	operations ports.OperationStore
	engine     ports.WorkflowEngine
	logger     *zap.Logger
}

// NewResearchHandler creates a new research handler
func NewResearchHandler(store ports.OperationStore, engine ports.WorkflowEngine, logger *zap.Logger) *ResearchHandler {
	return &ResearchHandler{
		operations: store,
		engine:     engine,
		logger:     logger,
	}
}

// ResearchRequest represents the request body for initiating research
type ResearchRequest struct {
	ProcessType            string `json:"processType" validate:"required,min=3,max=100"`
	Industry               string `json:"industry" validate:"required,min=3,max=100"`
	AdditionalRequirements string `json:"additionalRequirements,omitempty" validate:"omitempty,max=1000"`
}

// AcceptedResponse is the immediate acknowledgement for an operation
// request. It is returned before dispatch settles: the operation id is the
// client's handle for polling status later.
type AcceptedResponse struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
}

// Initiate handles POST /api/research
func (h *ResearchHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req ResearchRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	operationID := uuid.New().String()

	h.logger.Info("initiating research",
		zap.String("operationID", operationID),
		zap.String("processType", req.ProcessType),
		zap.String("industry", req.Industry),
	)

	op := &operations.Operation{
		ID:     operationID,
		Kind:   operations.KindResearch,
		Status: operations.StatusInProgress,
		Payload: map[string]any{
			"processType":            req.ProcessType,
			"industry":               req.Industry,
			"additionalRequirements": req.AdditionalRequirements,
		},
	}
	if _, err := h.operations.Create(r.Context(), op); err != nil {
		h.logger.Error("failed to create operation",
			zap.String("operationID", operationID),
			zap.Error(err),
		)
		common.RespondAppError(w, err)
		return
	}

	// Fire-and-forget: the acknowledgement below does not wait for the
	// engine. A dispatch failure is recorded on the operation so status
	// polls can surface it.
	go h.dispatch(operationID, ports.ResearchJob{
		OperationID:            operationID,
		ProcessType:            req.ProcessType,
		Industry:               req.Industry,
		AdditionalRequirements: req.AdditionalRequirements,
	})

	common.RespondJSON(w, http.StatusAccepted, AcceptedResponse{
		OperationID: operationID,
		Status:      string(operations.StatusInProgress),
		Message:     "Research operation started",
		Timestamp:   utils.NowRFC3339(),
	})
}

func (h *ResearchHandler) dispatch(operationID string, job ports.ResearchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if err := h.engine.TriggerResearch(ctx, job); err != nil {
		h.logger.Error("research dispatch failed",
			zap.String("operationID", operationID),
			zap.Error(err),
		)
		h.operations.Fail(ctx, operationID, map[string]any{
			"message":   "Failed to trigger research workflow",
			"timestamp": utils.NowRFC3339(),
		})
	}
}
