package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Action identifies the kind of administrative mutation an entry records.
type Action string

const (
	ActionUpdateRole Action = "UPDATE_ROLE"
	ActionDeleteUser Action = "DELETE_USER"

	// Reserved kinds. Declared for forward compatibility with the audit
	// viewer's filter; nothing emits them yet.
	ActionCreateUser    Action = "CREATE_USER"
	ActionResetPassword Action = "RESET_PASSWORD"
	ActionLoginAttempt  Action = "LOGIN_ATTEMPT"
	ActionAccountLock   Action = "ACCOUNT_LOCK"
	ActionAccountUnlock Action = "ACCOUNT_UNLOCK"
)

var knownActions = map[Action]struct{}{
	ActionUpdateRole:    {},
	ActionDeleteUser:    {},
	ActionCreateUser:    {},
	ActionResetPassword: {},
	ActionLoginAttempt:  {},
	ActionAccountLock:   {},
	ActionAccountUnlock: {},
}

// ParseAction validates an action filter value.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.TrimSpace(strings.ToUpper(raw)))
	if _, ok := knownActions[a]; !ok {
		return "", fmt.Errorf("unknown audit action %q", raw)
	}
	return a, nil
}

// Details is the typed payload attached to an entry. Each action kind has its
// own variant; the wire shape matches the untyped details map it replaces.
type Details interface {
	Action() Action
}

// RoleChangeDetails captures the before/after state of an UPDATE_ROLE entry.
type RoleChangeDetails struct {
	PreviousRole string `json:"previousRole"`
	NewRole      string `json:"newRole"`
}

func (RoleChangeDetails) Action() Action { return ActionUpdateRole }

// DeletedUser is the snapshot preserved by a DELETE_USER entry; the record it
// describes is no longer queryable once the entry is written.
type DeletedUser struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// DeletionDetails is the payload of a DELETE_USER entry.
type DeletionDetails struct {
	DeletedUser DeletedUser `json:"deletedUser"`
}

func (DeletionDetails) Action() Action { return ActionDeleteUser }

// Entry is an immutable record of an administrative mutation. Actor and
// target ids are soft references: entries survive user deletion.
type Entry struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	ActorID      string          `json:"actorId"`
	TargetUserID string          `json:"targetUserId"`
	Action       Action          `json:"action"`
	Details      json.RawMessage `json:"details"`
}

// NewEntry builds an entry from a typed detail payload. The id and timestamp
// are assigned by the recorder at write time.
func NewEntry(actorID, targetUserID string, details Details) (*Entry, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal audit details: %w", err)
	}
	return &Entry{
		ActorID:      actorID,
		TargetUserID: targetUserID,
		Action:       details.Action(),
		Details:      raw,
	}, nil
}
