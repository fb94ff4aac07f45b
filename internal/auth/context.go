package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/quentinv/tenantguard/internal/models"
)

// RequestContext is the trust decision for one request: who is calling,
// under which tenant, with which role. It is built once per request,
// immutable afterwards, and carried on the request's context.Context so
// it never escapes the handling goroutine.
type RequestContext struct {
	// Subject is uuid.Nil for anonymous requests.
	Subject uuid.UUID
	// TenantID is uuid.Nil when no tenant is resolved.
	TenantID uuid.UUID
	// Role is RoleNone unless a membership (or superadmin mode) grants one.
	Role models.Role
	// Superadmin is true only on the explicit acting-as-tenant bypass.
	Superadmin bool
	// Nonce is fresh per request and keys the response CSP.
	Nonce string

	// SessionID and CSRFToken are set only for session principals.
	SessionID string
	CSRFToken string
	// CookieSession marks a session carried by cookie, the only
	// transport that needs CSRF verification.
	CookieSession bool
}

func (rc *RequestContext) Authenticated() bool {
	return rc != nil && rc.Subject != uuid.Nil
}

func (rc *RequestContext) HasTenant() bool {
	return rc != nil && rc.TenantID != uuid.Nil
}

type contextKey struct{}

func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the request context, or nil outside the pipeline.
func FromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rc
}
