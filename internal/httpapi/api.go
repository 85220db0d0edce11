package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cryptodash.org/internal/audit"
	"cryptodash.org/internal/auth"
	"cryptodash.org/internal/obs"
	"cryptodash.org/internal/user"
)

const (
	defaultTokenTTL       = 24 * time.Hour
	defaultStorageTimeout = 5 * time.Second
)

// ReadyProbe pings the backing store for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the admin core.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	users  *user.Manager
	reader *audit.Reader
	gate   *auth.Gate

	tokenTTL       time.Duration
	storageTimeout time.Duration
	rateBurst      int
	ratePerSec     int
	maxBody        int64
}

// New wires the routes. The gate decides access for /admin, /dashboard and
// /api/admin before any handler runs.
func New(rp ReadyProbe, version string, users *user.Manager, reader *audit.Reader, gate *auth.Gate) *API {
	a := &API{
		mux:            http.NewServeMux(),
		readyProbe:     rp,
		version:        version,
		users:          users,
		reader:         reader,
		gate:           gate,
		tokenTTL:       defaultTokenTTL,
		storageTimeout: defaultStorageTimeout,
		rateBurst:      20,
		ratePerSec:     10,
		maxBody:        1 << 20,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/register", a.handleRegister)
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)

	a.mux.HandleFunc("/api/admin/users", a.handleUsersCollection)
	a.mux.HandleFunc("/api/admin/users/", a.handleUserResource)
	a.mux.HandleFunc("/api/admin/audit", a.handleAuditLogs)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	if a.gate != nil {
		h = a.gate.Middleware(h)
	}
	h = RequestTimeout(h, a.storageTimeout)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = Logging(h)
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "cryptodash-admin-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	body := map[string]any{"error": msg}
	if rid := requestIDFromContext(r.Context()); rid != "" {
		body["request_id"] = rid
	}
	writeJSON(w, code, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// claimedAdmin loads the request claims and enforces the admin role. The gate
// already guards /api/admin, but handlers re-check so they stay safe when
// mounted without it.
func (a *API) claimedAdmin(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}
	if claims.Role != string(user.RoleAdmin) {
		writeError(w, r, http.StatusForbidden, "unauthorized")
		return nil, false
	}
	return claims, true
}
