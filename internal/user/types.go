package user

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role controls authorization decisions across the service.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole normalizes and validates a role value.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleModerator:
		return RoleModerator, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: invalid role %q", ErrValidation, raw)
	}
}

// User is a registered account. PasswordHash is never serialized.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Image        string     `json:"image,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

var (
	// ErrValidation wraps every precondition failure: invalid role,
	// self-demotion, self-deletion and last-admin protection.
	ErrValidation = errors.New("user: validation failed")
	// ErrNotFound indicates the target record does not exist.
	ErrNotFound = errors.New("user: not found")
	// ErrEmailTaken indicates a registration conflict on the unique email.
	ErrEmailTaken = errors.New("user: email already exists")
	// ErrBadCredentials hides whether the email or the password was wrong.
	ErrBadCredentials = errors.New("user: invalid credentials")
	// ErrLastAdmin is reported by the store when a transaction would leave
	// the system without an admin.
	ErrLastAdmin = fmt.Errorf("%w: cannot remove the last remaining admin", ErrValidation)
)
