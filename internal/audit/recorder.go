package audit

import (
	"context"
	"time"

	"cryptodash.org/internal/ids"
	"cryptodash.org/internal/obs"
)

// Store persists entries and serves the paginated read path.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, q Query) ([]Entry, int, error)
}

// Query selects a window of entries, most recent first.
type Query struct {
	Offset int
	Limit  int
	// Action filters by kind when non-empty.
	Action Action
}

// Recorder appends entries as a best-effort side effect of a mutation that
// already succeeded. Append failures are logged and counted, never returned:
// the primary action's outcome must not depend on the audit write.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder wires a recorder to its backing store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// WithClock overrides the timestamp source, for tests.
func (r *Recorder) WithClock(fn func() time.Time) *Recorder {
	if fn != nil {
		r.now = fn
	}
	return r
}

// Record writes one entry for the given actor/target pair. The returned flag
// reports whether the entry was persisted; callers surface it so a mutation
// whose audit write failed is distinguishable from full success.
func (r *Recorder) Record(ctx context.Context, actorID, targetUserID string, details Details) bool {
	entry, err := NewEntry(actorID, targetUserID, details)
	if err != nil {
		r.logFailure(actorID, targetUserID, details.Action(), err)
		return false
	}
	entry.ID = ids.New()
	entry.Timestamp = r.now().UTC()
	if err := r.store.Append(ctx, entry); err != nil {
		r.logFailure(actorID, targetUserID, details.Action(), err)
		return false
	}
	return true
}

func (r *Recorder) logFailure(actorID, targetUserID string, action Action, err error) {
	obs.CountAuditWriteFailure()
	obs.Log(map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     "error",
		"msg":       "audit_write_failed",
		"action":    string(action),
		"actor_id":  actorID,
		"target_id": targetUserID,
		"error":     err.Error(),
	})
}
