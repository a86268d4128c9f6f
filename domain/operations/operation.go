package operations

import "time"

// Kind categorizes an operation by the workflow that executes it.
type Kind string

const (
	KindResearch  Kind = "research"
	KindImplement Kind = "implement"
	KindUnknown   Kind = "unknown"
)

// Status represents the lifecycle state of an operation. Transitions are
// monotonic: pending -> in_progress -> completed|failed, where the pending
// stage may be skipped.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Operation is a tracked unit of asynchronous work. Records are owned by the
// operation store; everything handed out by the store is a copy.
type Operation struct {
	ID            string
	Kind          Kind
	Status        Status
	Payload       map[string]any
	Result        map[string]any
	Error         map[string]any
	Progress      map[string]any
	CreatedAt     time.Time
	LastUpdatedAt time.Time
	CompletedAt   *time.Time
	ExpiresAt     time.Time
}

// Update is a partial-field patch applied by the store. Nil fields are left
// untouched.
type Update struct {
	Status   *Status
	Result   map[string]any
	Error    map[string]any
	Progress map[string]any
}

// Terminal reports whether the operation has reached a final state.
func (o *Operation) Terminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusFailed
}

// Expired reports whether the record must be treated as absent.
func (o *Operation) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// Clone returns a deep copy of the operation. The store hands out clones so
// readers never observe a concurrent mutation.
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}
	dup := *o
	dup.Payload = cloneMap(o.Payload)
	dup.Result = cloneMap(o.Result)
	dup.Error = cloneMap(o.Error)
	dup.Progress = cloneMap(o.Progress)
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		dup.CompletedAt = &t
	}
	return &dup
}

// CloneMap deep-copies a structured payload. The store uses it so caller
// maps never alias the canonical record.
func CloneMap(m map[string]any) map[string]any {
	return cloneMap(m)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	dup := make(map[string]any, len(m))
	for k, v := range m {
		dup[k] = cloneValue(v)
	}
	return dup
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		dup := make([]any, len(val))
		for i, item := range val {
			dup[i] = cloneValue(item)
		}
		return dup
	default:
		return v
	}
}
