package pg

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"cryptodash.org/internal/audit"
)

// idSliceConverter lets the mock accept the []string id parameter that the
// real pgx driver encodes as a postgres array.
type idSliceConverter struct{}

func (idSliceConverter) ConvertValue(v any) (driver.Value, error) {
	if ids, ok := v.([]string); ok {
		return strings.Join(ids, ","), nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func TestAppendDefaultsEmptyDetails(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("insert into audit_logs").
		WithArgs("e1", ts, "actor", "target", "DELETE_USER", []byte("{}")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Append(context.Background(), &audit.Entry{
		ID:           "e1",
		Timestamp:    ts,
		ActorID:      "actor",
		TargetUserID: "target",
		Action:       audit.ActionDeleteUser,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListReturnsWindowAndTotal(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("select count").
		WithArgs("").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery("select id, occurred_at, actor_id, target_user_id, action, details").
		WithArgs("", 20, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "occurred_at", "actor_id", "target_user_id", "action", "details"}).
			AddRow("e2", ts, "a1", "t1", "UPDATE_ROLE", []byte(`{"previousRole":"user","newRole":"admin"}`)).
			AddRow("e1", ts, "a1", "t2", "DELETE_USER", []byte(`{}`)))

	entries, total, err := store.List(context.Background(), audit.Query{Offset: 20, Limit: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 42 {
		t.Fatalf("total = %d", total)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Action != audit.ActionUpdateRole {
		t.Fatalf("action = %s", entries[0].Action)
	}
	var details audit.RoleChangeDetails
	if err := json.Unmarshal(entries[0].Details, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details.NewRole != "admin" {
		t.Fatalf("details = %+v", details)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListPassesActionFilter(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select count").
		WithArgs("DELETE_USER").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("select id, occurred_at, actor_id, target_user_id, action, details").
		WithArgs("DELETE_USER", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "occurred_at", "actor_id", "target_user_id", "action", "details"}))

	entries, total, err := store.List(context.Background(), audit.Query{Limit: 20, Action: audit.ActionDeleteUser})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 || len(entries) != 0 {
		t.Fatalf("expected empty result, got %d/%d", len(entries), total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSummariesSkipsQueryForNoIDs(t *testing.T) {
	store, _ := newMockStore(t)

	got, err := store.Summaries(context.Background(), nil)
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestSummariesResolvesPresentIDs(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(idSliceConverter{}))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewWithDB(db)

	mock.ExpectQuery("select id, name, email from users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow("u1", "Alice", "alice@example.com"))

	got, err := store.Summaries(context.Background(), []string{"u1", "gone"})
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if got["u1"].Name != "Alice" {
		t.Fatalf("u1 = %+v", got["u1"])
	}
	if _, ok := got["gone"]; ok {
		t.Fatalf("missing id resolved: %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
