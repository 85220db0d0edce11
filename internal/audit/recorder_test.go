package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRecorderAssignsIDAndTimestamp(t *testing.T) {
	store := NewInMemory()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := NewRecorder(store).WithClock(func() time.Time { return fixed })

	ok := rec.Record(context.Background(), "actor-1", "target-1", RoleChangeDetails{
		PreviousRole: "user",
		NewRole:      "admin",
	})
	if !ok {
		t.Fatalf("Record reported failure")
	}

	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID == "" {
		t.Fatalf("entry id not assigned")
	}
	if !e.Timestamp.Equal(fixed) {
		t.Fatalf("timestamp = %v, want %v", e.Timestamp, fixed)
	}
	if e.Action != ActionUpdateRole {
		t.Fatalf("action = %s", e.Action)
	}
	var details map[string]string
	if err := json.Unmarshal(e.Details, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details["previousRole"] != "user" || details["newRole"] != "admin" {
		t.Fatalf("details payload: %v", details)
	}
}

func TestRecorderSwallowsAppendFailure(t *testing.T) {
	store := NewInMemory()
	store.FailAppend = errors.New("connection refused")
	rec := NewRecorder(store)

	ok := rec.Record(context.Background(), "actor-1", "target-1", DeletionDetails{
		DeletedUser: DeletedUser{Email: "x@example.com", Name: "x", Role: "user"},
	})
	if ok {
		t.Fatalf("Record must report failure, not panic or error out")
	}
	if len(store.Entries()) != 0 {
		t.Fatalf("failed append left an entry behind")
	}
}

func TestRecorderMonotonicIDsOrderSameTimestamp(t *testing.T) {
	store := NewInMemory()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := NewRecorder(store).WithClock(func() time.Time { return fixed })

	for i := 0; i < 3; i++ {
		if ok := rec.Record(context.Background(), "a", "t", RoleChangeDetails{PreviousRole: "user", NewRole: "admin"}); !ok {
			t.Fatalf("record %d failed", i)
		}
	}

	page, _, err := store.List(context.Background(), Query{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(page))
	}
	appended := store.Entries()
	// Identical timestamps fall back to id order; ids are monotonic, so the
	// listing is the exact reverse of append order.
	for i := range page {
		if page[i].ID != appended[len(appended)-1-i].ID {
			t.Fatalf("position %d: got %s", i, page[i].ID)
		}
	}
}
