// Package services contains the application services that sit between the
// HTTP boundary and the infrastructure clients.
package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"forgeproxy/application/ports"
	"forgeproxy/domain/operations"
	"forgeproxy/pkg/utils"
)

// CallbackData is one inbound callback payload from the workflow engine.
// Error may arrive as a bare string or a structured object.
type CallbackData struct {
	OperationID string
	Success     bool
	Result      map[string]any
	Error       any
}

// CallbackService reconciles workflow-engine callbacks against tracked
// operations. A callback for an unknown or expired operation is a routine
// negative outcome, reported as processed=false rather than an error.
// Replayed callbacks on an already-terminal operation report processed=true
// and leave the stored result untouched, because the store's terminal
// transition is idempotent.
type CallbackService struct {
	operations ports.OperationStore
	instance   string
	logger     *zap.Logger
}

// NewCallbackService creates a new callback service
func NewCallbackService(store ports.OperationStore, serviceNowInstance string, logger *zap.Logger) *CallbackService {
	return &CallbackService{
		operations: store,
		instance:   serviceNowInstance,
		logger:     logger,
	}
}

// ProcessResearchCallback reconciles a research workflow callback.
func (s *CallbackService) ProcessResearchCallback(ctx context.Context, data CallbackData) (bool, error) {
	return s.process(ctx, data, operations.KindResearch, s.processResearchResult)
}

// ProcessImplementCallback reconciles an implementation workflow callback.
func (s *CallbackService) ProcessImplementCallback(ctx context.Context, data CallbackData) (bool, error) {
	return s.process(ctx, data, operations.KindImplement, s.processImplementResult)
}

func (s *CallbackService) process(
	ctx context.Context,
	data CallbackData,
	expected operations.Kind,
	postProcess func(result map[string]any, op *operations.Operation) map[string]any,
) (bool, error) {
	op, ok := s.operations.Get(ctx, data.OperationID)
	if !ok {
		s.logger.Warn("callback received for unknown operation",
			zap.String("operationID", data.OperationID),
			zap.String("expectedKind", string(expected)),
		)
		return false, nil
	}

	// A mismatched kind is suspicious but not fatal; the callback still
	// refers to a live operation.
	if op.Kind != expected {
		s.logger.Warn("kind mismatch in callback",
			zap.String("operationID", data.OperationID),
			zap.String("kind", string(op.Kind)),
			zap.String("expectedKind", string(expected)),
		)
	}

	if data.Success {
		s.logger.Info("operation completed successfully",
			zap.String("operationID", data.OperationID),
			zap.String("kind", string(expected)),
		)

		result := data.Result
		if result == nil {
			result = map[string]any{}
		}
		s.operations.Complete(ctx, data.OperationID, postProcess(result, op))
		return true, nil
	}

	s.logger.Error("operation failed",
		zap.String("operationID", data.OperationID),
		zap.String("kind", string(expected)),
		zap.Any("error", data.Error),
	)

	errInfo := normalizeError(data.Error)
	errInfo["timestamp"] = utils.NowRFC3339()
	s.operations.Fail(ctx, data.OperationID, errInfo)
	return true, nil
}

// processResearchResult orders sourced material by authority and attaches
// reconciliation metadata.
func (s *CallbackService) processResearchResult(result map[string]any, op *operations.Operation) map[string]any {
	if sources, ok := result["sources"].([]any); ok {
		sortSourcesByAuthority(sources)
	}

	confidence, ok := result["confidence"]
	if !ok {
		confidence = map[string]any{"overall": "medium"}
	}

	result["metadata"] = map[string]any{
		"serviceNowInstance": s.instance,
		"timestamp":          utils.NowRFC3339(),
		"processingTime":     utils.ElapsedMillis(op.CreatedAt),
		"confidence":         confidence,
	}
	return result
}

// processImplementResult synthesizes ServiceNow record links for the
// created process and attaches reconciliation metadata.
func (s *CallbackService) processImplementResult(result map[string]any, op *operations.Operation) map[string]any {
	result["links"] = s.serviceNowLinks(result)
	result["metadata"] = map[string]any{
		"serviceNowInstance": s.instance,
		"timestamp":          utils.NowRFC3339(),
		"processingTime":     utils.ElapsedMillis(op.CreatedAt),
	}
	return result
}

// serviceNowLinks derives instance URLs from the identifiers present in an
// implementation result.
func (s *CallbackService) serviceNowLinks(result map[string]any) map[string]any {
	links := map[string]any{}

	if processID, ok := result["processId"].(string); ok && processID != "" {
		links["admin"] = fmt.Sprintf("https://%s/x_312987_turbofo_0_process.do?sys_id=%s", s.instance, processID)
		links["user"] = fmt.Sprintf("https://%s/sp?id=tf_step_form&process=%s", s.instance, processID)
	}
	links["processList"] = fmt.Sprintf("https://%s/nav_to.do?uri=x_312987_turbofo_0_process_list.do", s.instance)

	return links
}

// sortSourcesByAuthority orders sources by descending authority score. The
// sort is stable so equally scored sources keep their arrival order.
func sortSourcesByAuthority(sources []any) {
	sort.SliceStable(sources, func(i, j int) bool {
		return authorityScore(sources[i]) > authorityScore(sources[j])
	})
}

func authorityScore(source any) float64 {
	m, ok := source.(map[string]any)
	if !ok {
		return 0
	}
	switch v := m["authorityScore"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// normalizeError wraps a bare string into a structured error object with a
// message field; structured errors pass through.
func normalizeError(errValue any) map[string]any {
	switch v := errValue.(type) {
	case nil:
		return map[string]any{"message": "unknown error"}
	case string:
		return map[string]any{"message": v}
	case map[string]any:
		info := make(map[string]any, len(v)+1)
		for k, val := range v {
			info[k] = val
		}
		return info
	default:
		return map[string]any{"message": fmt.Sprintf("%v", v)}
	}
}
