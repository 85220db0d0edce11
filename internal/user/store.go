package user

import "context"

// Store describes the persistence operations required by the lifecycle
// manager. ChangeRole and Delete must run their admin-count check and the
// mutation inside a single transaction so concurrent demotions cannot jointly
// remove the last admin.
type Store interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)

	// ChangeRole updates the target's role and update timestamp, returning
	// the previous role. Demoting the sole admin fails with ErrLastAdmin.
	ChangeRole(ctx context.Context, id string, newRole Role) (Role, error)

	// Delete removes the target record, returning it for audit capture.
	// Deleting the sole admin fails with ErrLastAdmin.
	Delete(ctx context.Context, id string) (*User, error)

	// CountAdmins reports how many records currently hold the admin role.
	CountAdmins(ctx context.Context) (int, error)
}
