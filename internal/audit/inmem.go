package audit

import (
	"context"
	"sort"
	"sync"
)

// InMemory implements Store for tests and local development. Entries are
// served most recent first with the same timestamp/id ordering the durable
// store uses.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry

	// FailAppend forces Append to return this error, for exercising the
	// recorder's best-effort path.
	FailAppend error
}

// NewInMemory creates an empty trail.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAppend != nil {
		return s.FailAppend
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *InMemory) List(ctx context.Context, q Query) ([]Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []Entry
	for _, e := range s.entries {
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		filtered = append(filtered, e)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if !filtered[i].Timestamp.Equal(filtered[j].Timestamp) {
			return filtered[i].Timestamp.After(filtered[j].Timestamp)
		}
		return filtered[i].ID > filtered[j].ID
	})

	total := len(filtered)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	end := offset + q.Limit
	if q.Limit <= 0 || end > total {
		end = total
	}
	window := make([]Entry, end-offset)
	copy(window, filtered[offset:end])
	return window, total, nil
}

// Entries returns a copy of everything appended, oldest first.
func (s *InMemory) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
