package pg

import (
	"context"
	"database/sql"
	"errors"

	"cryptodash.org/internal/user"
)

// Users adapts the shared Store to the user.Store interface. The audit-facing
// List on Store has an incompatible signature, so the user-facing List lives
// on this wrapper while every other method is promoted from Store.
type Users struct{ *Store }

var _ user.Store = Users{}

func (s *Store) Create(ctx context.Context, u *user.User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, email, name, role, image, password_hash, created_at)
		values ($1, $2, $3, $4, nullif($5,''), nullif($6,''), $7)
	`, u.ID, u.Email, u.Name, string(u.Role), u.Image, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return user.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *Store) Find(ctx context.Context, id string) (*user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select id, email, name, role, coalesce(image,''), coalesce(password_hash,''), created_at, updated_at
		from users where id = $1
	`, id))
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select id, email, name, role, coalesce(image,''), coalesce(password_hash,''), created_at, updated_at
		from users where email = $1
	`, email))
}

func (s Users) List(ctx context.Context) ([]*user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, email, name, role, coalesce(image,''), coalesce(password_hash,''), created_at, updated_at
		from users order by id desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*user.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ChangeRole runs the existence check, the last-admin check and the role
// update inside one serializable transaction. Two concurrent demotions of
// the two remaining admins cannot both commit: the second serializes after
// the first and sees an admin count of one.
func (s *Store) ChangeRole(ctx context.Context, id string, newRole user.Role) (user.Role, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `select role from users where id = $1 for update`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return "", user.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	previous := user.Role(current)

	if previous == user.RoleAdmin && newRole != user.RoleAdmin {
		var admins int
		if err := tx.QueryRowContext(ctx, `select count(*) from users where role = $1`, string(user.RoleAdmin)).Scan(&admins); err != nil {
			return "", err
		}
		if admins <= 1 {
			return "", user.ErrLastAdmin
		}
	}

	if _, err := tx.ExecContext(ctx, `
		update users set role = $2, updated_at = now() where id = $1
	`, id, string(newRole)); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return previous, nil
}

// Delete removes the record under the same transactional last-admin guard as
// ChangeRole and returns the deleted row for audit capture.
func (s *Store) Delete(ctx context.Context, id string) (*user.User, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	u, err := s.scanUser(tx.QueryRowContext(ctx, `
		select id, email, name, role, coalesce(image,''), coalesce(password_hash,''), created_at, updated_at
		from users where id = $1 for update
	`, id))
	if err != nil {
		return nil, err
	}

	if u.Role == user.RoleAdmin {
		var admins int
		if err := tx.QueryRowContext(ctx, `select count(*) from users where role = $1`, string(user.RoleAdmin)).Scan(&admins); err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, user.ErrLastAdmin
		}
	}

	if _, err := tx.ExecContext(ctx, `delete from users where id = $1`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var admins int
	err := s.db.QueryRowContext(ctx, `select count(*) from users where role = $1`, string(user.RoleAdmin)).Scan(&admins)
	if err != nil {
		return 0, err
	}
	return admins, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanUser(row rowScanner) (*user.User, error) {
	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanUserRow(row rowScanner) (*user.User, error) {
	var (
		u       user.User
		role    string
		updated sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.Image, &u.PasswordHash, &u.CreatedAt, &updated); err != nil {
		return nil, err
	}
	u.Role = user.Role(role)
	if updated.Valid {
		t := updated.Time
		u.UpdatedAt = &t
	}
	return &u, nil
}
