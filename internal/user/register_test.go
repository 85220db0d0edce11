package user

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterCreatesDefaultRoleAccount(t *testing.T) {
	mgr, store, _ := newTestManager(t)

	u, err := mgr.Register(context.Background(), "Alice", "  Alice@Example.COM ", "correct horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Role != RoleUser {
		t.Fatalf("default role = %s", u.Role)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %s", u.Email)
	}
	if u.PasswordHash == "" || u.PasswordHash == "correct horse" {
		t.Fatalf("password stored unhashed")
	}
	if _, err := store.Find(context.Background(), u.ID); err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	cases := []struct {
		name, displayName, email, password string
	}{
		{"empty name", "", "a@b.com", "longenough"},
		{"bad email", "A", "not-an-email", "longenough"},
		{"short password", "A", "a@b.com", "short"},
	}
	for _, tc := range cases {
		if _, err := mgr.Register(ctx, tc.displayName, tc.email, tc.password); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := mgr.Register(ctx, "Alice", "alice@example.com", "longenough"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := mgr.Register(ctx, "Other Alice", "alice@example.com", "alsolongenough")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	u, err := mgr.Register(ctx, "Alice", "alice@example.com", "longenough")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := mgr.Authenticate(ctx, "ALICE@example.com", "longenough")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("wrong record: %s", got.ID)
	}

	for _, tc := range []struct{ email, password string }{
		{"alice@example.com", "wrong password"},
		{"nobody@example.com", "longenough"},
		{"", "longenough"},
		{"alice@example.com", ""},
	} {
		if _, err := mgr.Authenticate(ctx, tc.email, tc.password); !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("%q/%q: expected ErrBadCredentials, got %v", tc.email, tc.password, err)
		}
	}
}

func TestAuthenticateRejectsPasswordlessAccount(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	oauth := seedUser(t, store, "carol", RoleUser)

	_, err := mgr.Authenticate(context.Background(), oauth.Email, "anything")
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
}
