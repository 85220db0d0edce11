package user

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemory implements Store with in-process locking. The lock covers each
// whole operation, so the admin-count check and the mutation are atomic the
// same way the SQL transaction makes them atomic in the durable store. Used
// by tests and local development without PostgreSQL.
type InMemory struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{users: make(map[string]*User)}
}

func (s *InMemory) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemory) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemory) List(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (s *InMemory) ChangeRole(ctx context.Context, id string, newRole Role) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return "", ErrNotFound
	}
	previous := u.Role
	if previous == RoleAdmin && newRole != RoleAdmin && s.countAdminsLocked() <= 1 {
		return "", ErrLastAdmin
	}
	now := time.Now().UTC()
	u.Role = newRole
	u.UpdatedAt = &now
	return previous, nil
}

func (s *InMemory) Delete(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Role == RoleAdmin && s.countAdminsLocked() <= 1 {
		return nil, ErrLastAdmin
	}
	delete(s.users, id)
	cp := *u
	return &cp, nil
}

func (s *InMemory) CountAdmins(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countAdminsLocked(), nil
}

func (s *InMemory) countAdminsLocked() int {
	n := 0
	for _, u := range s.users {
		if u.Role == RoleAdmin {
			n++
		}
	}
	return n
}
