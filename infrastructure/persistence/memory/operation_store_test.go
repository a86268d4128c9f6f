package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"forgeproxy/domain/operations"
	apperrors "forgeproxy/pkg/errors"
)

func newTestStore(ttl time.Duration) *OperationStore {
	return NewOperationStore(ttl, zap.NewNop())
}

func TestOperationStore_CreateAndGet(t *testing.T) {
	store := newTestStore(time.Hour)
	ctx := context.Background()

	created, err := store.Create(ctx, &operations.Operation{
		ID:      "op-1",
		Kind:    operations.KindResearch,
		Status:  operations.StatusInProgress,
		Payload: map[string]any{"processType": "Employee Onboarding"},
	})
	require.NoError(t, err)
	assert.Equal(t, operations.KindResearch, created.Kind)
	assert.Equal(t, operations.StatusInProgress, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.ExpiresAt.IsZero())

	got, ok := store.Get(ctx, "op-1")
	require.True(t, ok)
	assert.Equal(t, "op-1", got.ID)
	assert.Equal(t, "Employee Onboarding", got.Payload["processType"])
}

func TestOperationStore_CreateDefaults(t *testing.T) {
	store := newTestStore(time.Hour)

	created, err := store.Create(context.Background(), &operations.Operation{ID: "op-1"})
	require.NoError(t, err)
	assert.Equal(t, operations.KindUnknown, created.Kind)
	assert.Equal(t, operations.StatusPending, created.Status)
	assert.NotNil(t, created.Payload)
}

func TestOperationStore_CreateRequiresID(t *testing.T) {
	store := newTestStore(time.Hour)

	_, err := store.Create(context.Background(), &operations.Operation{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestOperationStore_DuplicateCreateConflicts(t *testing.T) {
	store := newTestStore(time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, &operations.Operation{ID: "op-1"})
	require.NoError(t, err)

	_, err = store.Create(ctx, &operations.Operation{ID: "op-1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestOperationStore_ExpiredRecordReplacedOnCreate(t *testing.T) {
	store := newTestStore(time.Millisecond)
	ctx := context.Background()

	_, err := store.Create(ctx, &operations.Operation{ID: "op-1", Kind: operations.KindResearch})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	created, err := store.Create(ctx, &operations.Operation{ID: "op-1", Kind: operations.KindImplement})
	require.NoError(t, err)
	assert.Equal(t, operations.KindImplement, created.Kind)
}

func TestOperationStore_GetEvictsExpired(t *testing.T) {
	store := newTestStore(time.Millisecond)
	ctx := context.Background()

	_, err := store.Create(ctx, &operations.Operation{ID: "op-1"})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, ok := store.Get(ctx, "op-1")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestOperationStore_CompleteIsIdempotent(t *testing.T) {
	store := newTestStore(time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, &operations.Operation{ID: "op-1", Status: operations.StatusInProgress})
	require.NoError(t, err)

	first, ok := store.Complete(ctx, "op-1", map[string]any{"answer": 1})
	require.True(t, ok)
	assert.Equal(t, operations.StatusCompleted, first.Status)
	require.NotNil(t, first.CompletedAt)

	second, ok := store.Complete(ctx, "op-1", map[string]any{"answer": 2})
	require.True(t, ok)
	assert.Equal(t, 1, second.Result["answer"])
	assert.Equal(t, first.CompletedAt.UnixNano(), second.CompletedAt.UnixNano())
}

func TestOperationStore_FailThenCompleteKeepsFailure(t *testing.T) {
	store := newTestStore(time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, &operations.Operation{ID: "op-1", Status: operations.StatusInProgress})
	require.NoError(t, err)

	_, ok := store.Fail(ctx, "op-1", map[string]any{"message": "engine unreachable"})
	require.True(t, ok)

	after, ok := store.Complete(ctx, "op-1", map[string]any{"answer": 1})
	require.True(t, ok)
	assert.Equal(t, operations.StatusFailed, after.Status)
	assert.Equal(t, "engine unreachable", after.Error["message"])
	assert.Nil(t, after.Result)
}

func TestOperationStore_ConcurrentTerminalTransitions(t *testing.T) {
	store := newTestStore(time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, &operations.Operation{ID: "op-1", Status: operations.StatusInProgress})
	require.NoError(t, err)

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			store.Complete(ctx, "op-1", map[string]any{"winner": n})
		}(i)
	}
	wg.Wait()

	got, ok := store.Get(ctx, "op-1")
	require.True(t, ok)
	assert.Equal(t, operations.StatusCompleted, got.Status)

	winner, ok := got.Result["winner"]
	require.True(t, ok)
	// Exactly one attempt won; every later call saw the terminal record.
	first, _ := store.Complete(ctx, "op-1", map[string]any{"winner": -1})
	assert.Equal(t, winner, first.Result["winner"])
}

func TestOperationStore_SetProgress(t *testing.T) {
	store := newTestStore(time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, &operations.Operation{ID: "op-1", Status: operations.StatusInProgress})
	require.NoError(t, err)

	updated, ok := store.SetProgress(ctx, "op-1", map[string]any{"stage": "searching"})
	require.True(t, ok)
	assert.Equal(t, "searching", updated.Progress["stage"])

	_, ok = store.Complete(ctx, "op-1", nil)
	require.True(t, ok)

	after, ok := store.SetProgress(ctx, "op-1", map[string]any{"stage": "late"})
	require.True(t, ok)
	assert.Equal(t, "searching", after.Progress["stage"])
}

func TestOperationStore_ReturnedRecordsAreCopies(t *testing.T) {
	store := newTestStore(time.Hour)
	ctx := context.Background()

	payload := map[string]any{"processType": "Onboarding"}
	created, err := store.Create(ctx, &operations.Operation{ID: "op-1", Payload: payload})
	require.NoError(t, err)

	created.Payload["processType"] = "mutated"
	payload["processType"] = "mutated too"

	got, ok := store.Get(ctx, "op-1")
	require.True(t, ok)
	assert.Equal(t, "Onboarding", got.Payload["processType"])
}

func TestOperationStore_Remove(t *testing.T) {
	store := newTestStore(time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, &operations.Operation{ID: "op-1"})
	require.NoError(t, err)

	assert.True(t, store.Remove(ctx, "op-1"))
	assert.False(t, store.Remove(ctx, "op-1"))
}

func TestOperationStore_Sweep(t *testing.T) {
	store := newTestStore(time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Create(ctx, &operations.Operation{ID: fmt.Sprintf("op-%d", i)})
		require.NoError(t, err)
	}

	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 5, store.Sweep())
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, store.Sweep())
}

func TestOperationStore_RunSweeperStopsOnCancel(t *testing.T) {
	store := newTestStore(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- store.RunSweeper(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
