package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cryptodash.org/internal/audit"
	"cryptodash.org/internal/user"
)

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.claimedAdmin(w, r); !ok {
		return
	}
	users, err := a.users.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to fetch users")
		return
	}
	if users == nil {
		users = []*user.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/users/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodPatch:
		a.changeRole(w, r, id)
	case http.MethodDelete:
		a.deleteUser(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) changeRole(w http.ResponseWriter, r *http.Request, targetID string) {
	claims, ok := a.claimedAdmin(w, r)
	if !ok {
		return
	}
	var req changeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.users.ChangeRole(r.Context(), claims.Subject, targetID, user.Role(req.Role))
	if err != nil {
		handleUserError(w, r, err, "failed to update user role")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"role":    string(result.NewRole),
	})
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, targetID string) {
	claims, ok := a.claimedAdmin(w, r)
	if !ok {
		return
	}
	if _, err := a.users.Delete(r.Context(), claims.Subject, targetID); err != nil {
		handleUserError(w, r, err, "failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.claimedAdmin(w, r); !ok {
		return
	}

	q := r.URL.Query()
	page := parseIntDefault(q.Get("page"), 1)
	limit := parseIntDefault(q.Get("limit"), 20)

	var action audit.Action
	if raw := strings.TrimSpace(q.Get("action")); raw != "" {
		parsed, err := audit.ParseAction(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		action = parsed
	}

	pageView, err := a.reader.ReadPage(r.Context(), page, limit, action)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to fetch audit logs")
		return
	}
	if pageView.Logs == nil {
		pageView.Logs = []audit.EntryView{}
	}
	writeJSON(w, http.StatusOK, pageView)
}

func handleUserError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, user.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, user.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	default:
		writeError(w, r, http.StatusInternalServerError, fallback)
	}
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
