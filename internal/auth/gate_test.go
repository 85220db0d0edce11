package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestGate(t *testing.T, opts ...GateOption) *Gate {
	t.Helper()
	base := []GateOption{
		WithRule("/admin", true),
		WithRule("/api/admin", true),
		WithRule("/dashboard", false),
	}
	g, err := NewGate(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return g
}

func gatedEcho(t *testing.T, g *Gate) http.Handler {
	t.Helper()
	return g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if ok {
			w.Header().Set("X-Role", claims.Role)
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func bearerFor(t *testing.T, userID, role string) string {
	t.Helper()
	token, _, err := GenerateToken(userID, userID+"@example.com", userID, role, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return "Bearer " + token
}

func TestGateBypassesUnmatchedPaths(t *testing.T) {
	setSecret(t, "unit-test-secret")
	handler := gatedEcho(t, newTestGate(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/about", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unmatched path blocked: %d", rec.Code)
	}
}

func TestGateRedirectsAnonymousPageRequest(t *testing.T) {
	setSecret(t, "unit-test-secret")
	handler := gatedEcho(t, newTestGate(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("Location = %s", loc)
	}
}

func TestGateRedirectsNonAdminToDeniedPage(t *testing.T) {
	setSecret(t, "unit-test-secret")
	handler := gatedEcho(t, newTestGate(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", bearerFor(t, "user-1", "user"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/access-denied" {
		t.Fatalf("Location = %s", loc)
	}
}

func TestGateAPIGetsJSONStatuses(t *testing.T) {
	setSecret(t, "unit-test-secret")
	handler := gatedEcho(t, newTestGate(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("missing error field: %v", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", bearerFor(t, "user-1", "moderator"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin status = %d", rec.Code)
	}
}

func TestGateAdmitsAdmin(t *testing.T) {
	setSecret(t, "unit-test-secret")
	handler := gatedEcho(t, newTestGate(t))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", bearerFor(t, "admin-1", "admin"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Role") != "admin" {
		t.Fatalf("claims missing from context")
	}
}

func TestGateAcceptsSessionCookie(t *testing.T) {
	setSecret(t, "unit-test-secret")
	handler := gatedEcho(t, newTestGate(t))

	token, _, err := GenerateToken("user-2", "u2@example.com", "u2", "user", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGateRejectsExpiredCookie(t *testing.T) {
	setSecret(t, "unit-test-secret")
	handler := gatedEcho(t, newTestGate(t))

	token, _, err := GenerateToken("user-2", "u2@example.com", "u2", "user", time.Millisecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGateRevalidateOverridesStaleClaim(t *testing.T) {
	setSecret(t, "unit-test-secret")
	// The signed claim says admin; the store says the user was demoted.
	resolver := func(ctx context.Context, userID string) (string, error) {
		return "user", nil
	}
	handler := gatedEcho(t, newTestGate(t, WithValidity(ValidityRevalidate, resolver)))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", bearerFor(t, "admin-1", "admin"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stale admin claim admitted: %d", rec.Code)
	}
}

func TestGateRevalidateResolverFailure(t *testing.T) {
	setSecret(t, "unit-test-secret")
	resolver := func(ctx context.Context, userID string) (string, error) {
		return "", errors.New("user gone")
	}
	handler := gatedEcho(t, newTestGate(t, WithValidity(ValidityRevalidate, resolver)))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", bearerFor(t, "admin-1", "admin"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGateLongestPrefixWins(t *testing.T) {
	setSecret(t, "unit-test-secret")
	// /api overlaps /api/admin; the more specific admin rule must apply.
	g, err := NewGate(WithRule("/api", false), WithRule("/api/admin", true))
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	handler := gatedEcho(t, g)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", bearerFor(t, "user-1", "user"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin rule not applied: %d", rec.Code)
	}
}

func TestParseValidity(t *testing.T) {
	if v, err := ParseValidity(""); err != nil || v != ValidityTrust {
		t.Fatalf("empty: %v %v", v, err)
	}
	if v, err := ParseValidity("REVALIDATE"); err != nil || v != ValidityRevalidate {
		t.Fatalf("revalidate: %v %v", v, err)
	}
	if _, err := ParseValidity("paranoid"); err == nil {
		t.Fatalf("unknown value accepted")
	}
}

func TestNewGateRejectsRevalidateWithoutResolver(t *testing.T) {
	if _, err := NewGate(WithValidity(ValidityRevalidate, nil)); err == nil {
		t.Fatalf("expected configuration error")
	}
}
