// Package ports defines the interfaces the application layer depends on.
// Infrastructure packages provide the implementations.
package ports

import (
	"context"
	"io"

	"forgeproxy/domain/operations"
)

// OperationStore is the process-local registry of asynchronous operations.
//
// All methods are safe for concurrent use. Terminal transitions (Complete,
// Fail) are idempotent: once a record is completed or failed, further
// terminal calls return the stored record unchanged. Records whose TTL has
// passed behave as absent whether or not the sweeper has removed them yet.
type OperationStore interface {
	// Create inserts a new record. It fails with a conflict error when an
	// unexpired record with the same id already exists.
	Create(ctx context.Context, op *operations.Operation) (*operations.Operation, error)

	// Get returns the record, or false when it is missing or expired.
	Get(ctx context.Context, id string) (*operations.Operation, bool)

	// Update merges the non-nil patch fields into the record.
	Update(ctx context.Context, id string, patch operations.Update) (*operations.Operation, bool)

	// Complete transitions the record to completed with the given result.
	Complete(ctx context.Context, id string, result map[string]any) (*operations.Operation, bool)

	// Fail transitions the record to failed with the given error detail.
	Fail(ctx context.Context, id string, errInfo map[string]any) (*operations.Operation, bool)

	// SetProgress records partial progress on a non-terminal operation.
	SetProgress(ctx context.Context, id string, progress map[string]any) (*operations.Operation, bool)

	// Remove deletes the record, reporting whether one was present.
	Remove(ctx context.Context, id string) bool
}

// ResearchJob is the input handed to the research workflow.
type ResearchJob struct {
	OperationID            string
	ProcessType            string
	Industry               string
	AdditionalRequirements string
}

// ImplementJob is the input handed to the implementation workflow. The
// process definition is forwarded verbatim.
type ImplementJob struct {
	OperationID       string
	ProcessDefinition map[string]any
}

// WorkflowEngine hands jobs to the external workflow engine. The engine
// reports results later through the callback endpoints; a nil return only
// means the dispatch was accepted.
type WorkflowEngine interface {
	TriggerResearch(ctx context.Context, job ResearchJob) error
	TriggerImplement(ctx context.Context, job ImplementJob) error

	// CheckReachable probes the engine for health reporting.
	CheckReachable(ctx context.Context) error
}

// ChatMessage is a single turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResult is a completed, non-streaming chat response.
type ChatResult struct {
	Content string
}

// ModelServer talks to the external model server.
type ModelServer interface {
	// Chat performs a blocking chat completion.
	Chat(ctx context.Context, messages []ChatMessage, options map[string]any) (*ChatResult, error)

	// StreamChat opens a streaming chat completion and returns the raw
	// chunked body of newline-delimited JSON objects. Cancelling ctx
	// aborts the upstream request. The caller owns the ReadCloser.
	StreamChat(ctx context.Context, messages []ChatMessage, options map[string]any) (io.ReadCloser, error)

	// Version returns the server version, for health reporting.
	Version(ctx context.Context) (string, error)

	// ListModels returns the names of the models the server has loaded.
	ListModels(ctx context.Context) ([]string, error)

	// ModelName is the configured default model.
	ModelName() string
}
