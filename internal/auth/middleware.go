package auth

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/quentinv/tenantguard/internal/models"
)

const (
	// APIKeyHeader carries the alternative API-key principal.
	APIKeyHeader = "X-API-Key"
	// ActingTenantHeader selects the tenant for superadmin mode.
	ActingTenantHeader = "X-Acting-Tenant"
)

// Middleware builds the RequestContext for every request and injects it
// into the request context. It never rejects: an unauthenticatable
// request proceeds as anonymous and is stopped, if at all, by later
// stages or by the scoped accessor.
type Middleware struct {
	builder    *Builder
	cookieName string
}

func NewMiddleware(builder *Builder, cookieName string) *Middleware {
	return &Middleware{builder: builder, cookieName: cookieName}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		in := Input{
			APIKey:       r.Header.Get(APIKeyHeader),
			ActingTenant: r.Header.Get(ActingTenantHeader),
			ClientIP:     ClientIP(r),
		}

		if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
			in.SessionID = c.Value
			in.FromCookie = true
		} else if tok := bearerToken(r); tok != "" {
			in.SessionID = tok
		}

		rc := m.builder.Build(r.Context(), in)
		next.ServeHTTP(w, r.WithContext(WithRequestContext(r.Context(), rc)))
	})
}

// RequireAuth short-circuits anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := FromContext(r.Context())
		if rc == nil || (!rc.Authenticated() && !rc.HasTenant()) {
			WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole gates a route on a minimum role within the resolved
// tenant. No tenant means the caller must pick one first (409); an
// insufficient role within the caller's own tenant is a plain 403,
// since the resource space itself is no secret to a member.
func RequireRole(min models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := FromContext(r.Context())
			if rc == nil || (!rc.Authenticated() && !rc.HasTenant()) {
				WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !rc.HasTenant() {
				WriteError(w, http.StatusConflict, "tenant selection required")
				return
			}
			if !rc.Role.AtLeast(min) {
				WriteError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the request's network identity. RemoteAddr only:
// proxy headers are spoofable and must not feed rate limiting or audit.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
