package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cryptodash.org/internal/audit"
	"cryptodash.org/internal/obs"
)

// Manager applies validated mutations to user records. Authorization (caller
// must hold the admin role) is enforced at the request boundary before any
// Manager method runs; the Manager owns the remaining invariants.
type Manager struct {
	store    Store
	recorder *audit.Recorder
}

// NewManager constructs a Manager.
func NewManager(store Store, recorder *audit.Recorder) (*Manager, error) {
	if store == nil {
		return nil, errors.New("user store is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	return &Manager{store: store, recorder: recorder}, nil
}

// ChangeRoleResult acknowledges a role mutation. AuditLogged is false when
// the mutation succeeded but its audit entry could not be written.
type ChangeRoleResult struct {
	PreviousRole Role
	NewRole      Role
	AuditLogged  bool
}

// ChangeRole moves the target to newRole. Validation order: role membership,
// self-demotion, target existence, last-admin protection. The existence and
// admin-count checks run inside the store's transaction together with the
// mutation. Writing the role the target already holds is a permitted no-op
// that still produces an audit entry: every attempt is logged.
func (m *Manager) ChangeRole(ctx context.Context, actorID, targetID string, newRole Role) (ChangeRoleResult, error) {
	actorID = strings.TrimSpace(actorID)
	targetID = strings.TrimSpace(targetID)
	if actorID == "" || targetID == "" {
		return ChangeRoleResult{}, fmt.Errorf("%w: actor and target ids are required", ErrValidation)
	}
	if _, err := ParseRole(string(newRole)); err != nil {
		obs.CountAdminAction(string(audit.ActionUpdateRole), "rejected")
		return ChangeRoleResult{}, err
	}
	if actorID == targetID && newRole != RoleAdmin {
		obs.CountAdminAction(string(audit.ActionUpdateRole), "rejected")
		return ChangeRoleResult{}, fmt.Errorf("%w: admins cannot demote themselves", ErrValidation)
	}

	previous, err := m.store.ChangeRole(ctx, targetID, newRole)
	if err != nil {
		obs.CountAdminAction(string(audit.ActionUpdateRole), outcomeFor(err))
		return ChangeRoleResult{}, err
	}

	logged := m.recorder.Record(ctx, actorID, targetID, audit.RoleChangeDetails{
		PreviousRole: string(previous),
		NewRole:      string(newRole),
	})
	obs.CountAdminAction(string(audit.ActionUpdateRole), "success")
	return ChangeRoleResult{PreviousRole: previous, NewRole: newRole, AuditLogged: logged}, nil
}

// DeleteResult acknowledges an account deletion. The snapshot preserves the
// fields that are no longer queryable once the record is gone.
type DeleteResult struct {
	Deleted     audit.DeletedUser
	AuditLogged bool
}

// Delete removes the target record. Self-deletion is rejected before any
// lookup, independent of the last-admin rule.
func (m *Manager) Delete(ctx context.Context, actorID, targetID string) (DeleteResult, error) {
	actorID = strings.TrimSpace(actorID)
	targetID = strings.TrimSpace(targetID)
	if actorID == "" || targetID == "" {
		return DeleteResult{}, fmt.Errorf("%w: actor and target ids are required", ErrValidation)
	}
	if actorID == targetID {
		obs.CountAdminAction(string(audit.ActionDeleteUser), "rejected")
		return DeleteResult{}, fmt.Errorf("%w: you cannot delete your own account", ErrValidation)
	}

	deleted, err := m.store.Delete(ctx, targetID)
	if err != nil {
		obs.CountAdminAction(string(audit.ActionDeleteUser), outcomeFor(err))
		return DeleteResult{}, err
	}

	snapshot := audit.DeletedUser{
		Email: deleted.Email,
		Name:  deleted.Name,
		Role:  string(deleted.Role),
	}
	logged := m.recorder.Record(ctx, actorID, targetID, audit.DeletionDetails{DeletedUser: snapshot})
	obs.CountAdminAction(string(audit.ActionDeleteUser), "success")
	return DeleteResult{Deleted: snapshot, AuditLogged: logged}, nil
}

// List returns every user record, most recently created first.
func (m *Manager) List(ctx context.Context) ([]*User, error) {
	return m.store.List(ctx)
}

// Get loads a single record.
func (m *Manager) Get(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return m.store.Find(ctx, id)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "rejected"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
