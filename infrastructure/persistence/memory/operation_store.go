// Package memory provides the in-memory operation registry. State lives
// for the lifetime of the process; persistence across restarts is out of
// scope.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"forgeproxy/domain/operations"
	apperrors "forgeproxy/pkg/errors"
)

// DefaultSweepInterval matches the hourly cleanup cadence the TTL scale
// calls for.
const DefaultSweepInterval = time.Hour

// OperationStore is a concurrent registry of operation records with
// per-record expiry.
//
// A single mutex guards the map so that every read-modify-write sequence
// (terminal transitions, check-expiry-then-evict reads) is one critical
// section. Records handed out are deep copies; the canonical record is
// only ever touched under the lock.
type OperationStore struct {
	mu            sync.Mutex
	operations    map[string]*operations.Operation
	ttl           time.Duration
	sweepInterval time.Duration
	logger        *zap.Logger
}

// NewOperationStore creates a new in-memory operation store
func NewOperationStore(ttl time.Duration, logger *zap.Logger) *OperationStore {
	return &OperationStore{
		operations:    make(map[string]*operations.Operation),
		ttl:           ttl,
		sweepInterval: DefaultSweepInterval,
		logger:        logger,
	}
}

// Create inserts a new operation record. The id and kind come from the
// caller; timestamps and expiry are stamped here. An unexpired record
// under the same id is a conflict; an expired one is evicted and replaced.
func (s *OperationStore) Create(ctx context.Context, op *operations.Operation) (*operations.Operation, error) {
	if op == nil || op.ID == "" {
		return nil, apperrors.NewValidationError("operation id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.operations[op.ID]; ok {
		if !existing.Expired(now) {
			return nil, apperrors.NewConflictError(fmt.Sprintf("operation already exists: %s", op.ID))
		}
		delete(s.operations, op.ID)
	}

	rec := op.Clone()
	if rec.Kind == "" {
		rec.Kind = operations.KindUnknown
	}
	if rec.Status == "" {
		rec.Status = operations.StatusPending
	}
	if rec.Payload == nil {
		rec.Payload = map[string]any{}
	}
	rec.CreatedAt = now
	rec.LastUpdatedAt = now
	rec.ExpiresAt = now.Add(s.ttl)
	rec.Result = nil
	rec.Error = nil
	rec.CompletedAt = nil

	s.operations[rec.ID] = rec

	s.logger.Debug("operation created",
		zap.String("operationID", rec.ID),
		zap.String("kind", string(rec.Kind)),
		zap.String("status", string(rec.Status)),
	)

	return rec.Clone(), nil
}

// Get returns the operation unless it is missing or expired. An expired
// record is evicted on the spot so it behaves as absent even before the
// sweeper runs.
func (s *OperationStore) Get(ctx context.Context, id string) (*operations.Operation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getLocked(id, time.Now())
	if rec == nil {
		return nil, false
	}
	return rec.Clone(), true
}

// Update merges the non-nil patch fields into the record and refreshes
// lastUpdatedAt. Returns false if the operation is gone.
func (s *OperationStore) Update(ctx context.Context, id string, patch operations.Update) (*operations.Operation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getLocked(id, time.Now())
	if rec == nil {
		return nil, false
	}

	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.Result != nil {
		rec.Result = operations.CloneMap(patch.Result)
	}
	if patch.Error != nil {
		rec.Error = operations.CloneMap(patch.Error)
	}
	if patch.Progress != nil {
		rec.Progress = operations.CloneMap(patch.Progress)
	}
	rec.LastUpdatedAt = time.Now()

	return rec.Clone(), true
}

// Complete transitions the operation to completed with the given result.
// If the record is already terminal the call is a no-op and the stored
// record is returned unchanged.
func (s *OperationStore) Complete(ctx context.Context, id string, result map[string]any) (*operations.Operation, bool) {
	return s.terminal(id, operations.StatusCompleted, result, nil)
}

// Fail transitions the operation to failed with the given error detail.
// Already-terminal records are returned unchanged.
func (s *OperationStore) Fail(ctx context.Context, id string, errInfo map[string]any) (*operations.Operation, bool) {
	return s.terminal(id, operations.StatusFailed, nil, errInfo)
}

// terminal performs the one-time transition to completed or failed. The
// whole check-and-set runs under the store lock, so concurrent attempts
// serialize and exactly one wins.
func (s *OperationStore) terminal(id string, status operations.Status, result, errInfo map[string]any) (*operations.Operation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rec := s.getLocked(id, now)
	if rec == nil {
		return nil, false
	}

	if rec.Terminal() {
		s.logger.Debug("operation already terminal, ignoring transition",
			zap.String("operationID", id),
			zap.String("status", string(rec.Status)),
		)
		return rec.Clone(), true
	}

	rec.Status = status
	rec.Result = operations.CloneMap(result)
	rec.Error = operations.CloneMap(errInfo)
	completed := now
	rec.CompletedAt = &completed
	rec.LastUpdatedAt = now

	s.logger.Debug("operation transitioned",
		zap.String("operationID", id),
		zap.String("status", string(status)),
	)

	return rec.Clone(), true
}

// SetProgress records partial progress without touching terminal fields.
// On a terminal record it is a no-op returning the stored record.
func (s *OperationStore) SetProgress(ctx context.Context, id string, progress map[string]any) (*operations.Operation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getLocked(id, time.Now())
	if rec == nil {
		return nil, false
	}
	if rec.Terminal() {
		return rec.Clone(), true
	}

	rec.Progress = operations.CloneMap(progress)
	rec.LastUpdatedAt = time.Now()

	return rec.Clone(), true
}

// Remove deletes an operation, reporting whether one was present.
func (s *OperationStore) Remove(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.operations[id]; !ok {
		return false
	}
	delete(s.operations, id)
	s.logger.Debug("operation removed", zap.String("operationID", id))
	return true
}

// Len reports the number of records currently held, expired or not.
func (s *OperationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.operations)
}

// Sweep evicts every expired record and returns how many were removed.
func (s *OperationStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, rec := range s.operations {
		if rec.Expired(now) {
			delete(s.operations, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("cleaned up expired operations", zap.Int("count", removed))
	}
	return removed
}

// RunSweeper sweeps once immediately and then on every interval tick until
// ctx is cancelled. It is intended to run for the whole process lifetime.
func (s *OperationStore) RunSweeper(ctx context.Context) error {
	s.Sweep()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// getLocked looks up a record, evicting it when expired. Callers must hold
// the store lock.
func (s *OperationStore) getLocked(id string, now time.Time) *operations.Operation {
	rec, ok := s.operations[id]
	if !ok {
		return nil
	}
	if rec.Expired(now) {
		delete(s.operations, id)
		s.logger.Debug("operation expired", zap.String("operationID", id))
		return nil
	}
	return rec
}
