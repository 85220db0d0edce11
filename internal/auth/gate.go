package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	// SessionCookie carries the signed claim for browser navigation, where
	// no Authorization header is available.
	SessionCookie = "cryptodash_session"

	roleAdmin = "admin"
)

// Validity selects how the gate treats the role embedded in a signed claim.
type Validity string

const (
	// ValidityTrust uses the role snapshot from the claim. Fast, but a
	// demoted admin keeps admin access until the claim expires.
	ValidityTrust Validity = "trust"
	// ValidityRevalidate re-reads the role from the store on every gated
	// request, closing the staleness window at the cost of a lookup.
	ValidityRevalidate Validity = "revalidate"
)

// ParseValidity validates a claim-validity configuration value.
func ParseValidity(raw string) (Validity, error) {
	switch Validity(strings.TrimSpace(strings.ToLower(raw))) {
	case "", ValidityTrust:
		return ValidityTrust, nil
	case ValidityRevalidate:
		return ValidityRevalidate, nil
	default:
		return "", fmt.Errorf("unknown claim validity %q", raw)
	}
}

// RoleResolver returns the current role held by the given user id. It backs
// the revalidate policy; an error rejects the request as unauthenticated.
type RoleResolver func(ctx context.Context, userID string) (string, error)

// Rule gates one path prefix. RequireAdmin false means any authenticated
// identity passes.
type Rule struct {
	Prefix       string
	RequireAdmin bool
}

// Gate decides, per request, whether the caller may proceed. It has no side
// effects beyond routing: unauthenticated callers are sent to the sign-in
// entry point, authenticated callers lacking the admin role to the
// access-denied destination. API paths get JSON statuses instead of
// redirects. Paths matching no rule bypass the gate entirely.
type Gate struct {
	rules     []Rule
	signInURL string
	deniedURL string
	validity  Validity
	resolve   RoleResolver
}

// GateOption configures Gate behavior.
type GateOption func(*Gate) error

// WithRule adds a protected path prefix.
func WithRule(prefix string, requireAdmin bool) GateOption {
	return func(g *Gate) error {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			return fmt.Errorf("gate rule prefix is required")
		}
		g.rules = append(g.rules, Rule{Prefix: prefix, RequireAdmin: requireAdmin})
		return nil
	}
}

// WithSignInURL overrides the unauthenticated redirect destination.
func WithSignInURL(url string) GateOption {
	return func(g *Gate) error {
		if strings.TrimSpace(url) != "" {
			g.signInURL = url
		}
		return nil
	}
}

// WithDeniedURL overrides the access-denied redirect destination.
func WithDeniedURL(url string) GateOption {
	return func(g *Gate) error {
		if strings.TrimSpace(url) != "" {
			g.deniedURL = url
		}
		return nil
	}
}

// WithValidity selects the claim-validity policy. Revalidate requires a
// resolver.
func WithValidity(v Validity, resolve RoleResolver) GateOption {
	return func(g *Gate) error {
		if v == ValidityRevalidate && resolve == nil {
			return fmt.Errorf("revalidate policy requires a role resolver")
		}
		g.validity = v
		g.resolve = resolve
		return nil
	}
}

// NewGate constructs a Gate with the default trust-claim policy.
func NewGate(opts ...GateOption) (*Gate, error) {
	g := &Gate{
		signInURL: "/login",
		deniedURL: "/access-denied",
		validity:  ValidityTrust,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Middleware wraps next with the gate's per-request decision. Requests that
// pass carry their claims in the context, with the role refreshed when the
// revalidate policy is active.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule, ok := g.match(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := g.claimsFromRequest(r)
		if err != nil {
			g.rejectUnauthenticated(w, r)
			return
		}

		role := claims.Role
		if g.validity == ValidityRevalidate {
			current, err := g.resolve(r.Context(), claims.Subject)
			if err != nil {
				g.rejectUnauthenticated(w, r)
				return
			}
			role = strings.TrimSpace(strings.ToLower(current))
			claims.Role = role
		}

		if rule.RequireAdmin && role != roleAdmin {
			g.rejectUnauthorized(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

func (g *Gate) match(path string) (Rule, bool) {
	var best Rule
	found := false
	for _, rule := range g.rules {
		if !strings.HasPrefix(path, rule.Prefix) {
			continue
		}
		if !found || len(rule.Prefix) > len(best.Prefix) {
			best = rule
			found = true
		}
	}
	return best, found
}

func (g *Gate) claimsFromRequest(r *http.Request) (*Claims, error) {
	if token, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
		return ParseAndValidate(token)
	}
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return ParseAndValidate(cookie.Value)
}

func (g *Gate) rejectUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if isAPIPath(r.URL.Path) {
		gateError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	http.Redirect(w, r, g.signInURL, http.StatusTemporaryRedirect)
}

func (g *Gate) rejectUnauthorized(w http.ResponseWriter, r *http.Request) {
	if isAPIPath(r.URL.Path) {
		gateError(w, http.StatusForbidden, "unauthorized")
		return
	}
	http.Redirect(w, r, g.deniedURL, http.StatusTemporaryRedirect)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrUnauthenticated
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", ErrUnauthenticated
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func gateError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
