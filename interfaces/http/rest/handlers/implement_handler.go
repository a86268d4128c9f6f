package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"forgeproxy/application/ports"
	"forgeproxy/domain/operations"
	"forgeproxy/pkg/common"
	"forgeproxy/pkg/utils"
)

// ImplementHandler handles process implementation requests
type ImplementHandler struct {
	operations ports.OperationStore
	engine     ports.WorkflowEngine
	logger     *zap.Logger
}

// NewImplementHandler creates a new implement handler
func NewImplementHandler(store ports.OperationStore, engine ports.WorkflowEngine, logger *zap.Logger) *ImplementHandler {
	return &ImplementHandler{
		operations: store,
		engine:     engine,
		logger:     logger,
	}
}

// ImplementRequest validates the parts of a process definition this
// service reads. The full definition is forwarded to the workflow engine
// untouched, so unknown fields are deliberately allowed through.
type ImplementRequest struct {
	Process struct {
		Name string `json:"name" validate:"required,min=3,max=100"`
	} `json:"process"`
	Milestones []ImplementMilestone `json:"milestones" validate:"required,min=1,dive"`
}

// ImplementMilestone is one milestone of a process definition.
type ImplementMilestone struct {
	Name  string          `json:"name" validate:"required,min=3,max=100"`
	Steps []ImplementStep `json:"steps,omitempty" validate:"omitempty,dive"`
}

// ImplementStep is one step inside a milestone.
type ImplementStep struct {
	Name      string           `json:"name" validate:"required,min=3,max=100"`
	Questions []map[string]any `json:"questions,omitempty"`
}

// Initiate handles POST /api/implement
func (h *ImplementHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var req ImplementRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	// Re-decode the raw bytes so the engine receives the definition
	// verbatim, including fields this service never models.
	var definition map[string]any
	if err := json.Unmarshal(raw, &definition); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	operationID := uuid.New().String()
	summary := summarizeDefinition(req)

	h.logger.Info("initiating implementation",
		zap.String("operationID", operationID),
		zap.String("processName", req.Process.Name),
		zap.Int("milestoneCount", len(req.Milestones)),
	)

	op := &operations.Operation{
		ID:     operationID,
		Kind:   operations.KindImplement,
		Status: operations.StatusInProgress,
		Payload: map[string]any{
			"processName":    req.Process.Name,
			"processSummary": summary,
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

	go h.dispatch(operationID, ports.ImplementJob{
		OperationID:       operationID,
		ProcessDefinition: definition,
	})

	common.RespondJSON(w, http.StatusAccepted, AcceptedResponse{
		OperationID: operationID,
		Status:      string(operations.StatusInProgress),
		Message:     "Implementation operation started",
		Timestamp:   utils.NowRFC3339(),
	})
}

func (h *ImplementHandler) dispatch(operationID string, job ports.ImplementJob) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if err := h.engine.TriggerImplement(ctx, job); err != nil {
		h.logger.Error("implementation dispatch failed",
			zap.String("operationID", operationID),
			zap.Error(err),
		)
		h.operations.Fail(ctx, operationID, map[string]any{
			"message":   "Failed to trigger implementation workflow",
			"timestamp": utils.NowRFC3339(),
		})
	}
}

// summarizeDefinition captures the counts the status payload reports
// instead of storing the whole definition.
func summarizeDefinition(req ImplementRequest) map[string]any {
	stepCount := 0
	questionCount := 0
	for _, milestone := range req.Milestones {
		stepCount += len(milestone.Steps)
		for _, step := range milestone.Steps {
			questionCount += len(step.Questions)
		}
	}

	return map[string]any{
		"milestoneCount":     len(req.Milestones),
		"totalStepCount":     stepCount,
		"totalQuestionCount": questionCount,
	}
}
