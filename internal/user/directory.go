package user

import (
	"context"

	"cryptodash.org/internal/audit"
)

// Summaries implements the audit reader's user directory on top of the
// in-memory store. The durable store has its own SQL implementation.
func (s *InMemory) Summaries(ctx context.Context, ids []string) (map[string]audit.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]audit.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			result[id] = audit.UserSummary{Name: u.Name, Email: u.Email}
		}
	}
	return result, nil
}
