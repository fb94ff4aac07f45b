package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/models"
	"github.com/quentinv/tenantguard/internal/secure"
)

// Directory answers identity questions: users, tenants, memberships.
// Lookups that find nothing return (nil, nil) / RoleNone, reserving
// errors for store failures.
type Directory interface {
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	TenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	MembershipRole(ctx context.Context, userID, tenantID uuid.UUID) (models.Role, error)
}

// KeyVerifier resolves an API key to its tenant.
type KeyVerifier interface {
	Verify(ctx context.Context, candidate string) (uuid.UUID, bool)
}

// Builder assembles the RequestContext for each inbound request. Every
// resolution failure degrades to the least-privileged state; the builder
// never errors a request open.
type Builder struct {
	sessions SessionStore
	dir      Directory
	keys     KeyVerifier
	audit    audit.Recorder

	storeTimeout      time.Duration
	superadminEnabled bool
}

func NewBuilder(sessions SessionStore, dir Directory, keys KeyVerifier, rec audit.Recorder, storeTimeout time.Duration, superadminEnabled bool) *Builder {
	return &Builder{
		sessions:          sessions,
		dir:               dir,
		keys:              keys,
		audit:             rec,
		storeTimeout:      storeTimeout,
		superadminEnabled: superadminEnabled,
	}
}

// Input carries the raw credential material extracted from a request.
type Input struct {
	SessionID    string
	FromCookie   bool
	APIKey       string
	ActingTenant string
	ClientIP     string
}

// Build resolves the credential material into a finished context.
// The returned context is complete and immutable; even an
// anonymous outcome carries a fresh nonce so response hardening applies
// uniformly.
func (b *Builder) Build(ctx context.Context, in Input) *RequestContext {
	rc := &RequestContext{Role: models.RoleNone}

	nonce, err := secure.NewNonce()
	if err != nil {
		// Without a nonce the CSP cannot admit any inline content,
		// which is the restrictive direction; proceed anonymous.
		slog.Error("mint nonce failed", "error", err)
		return rc
	}
	rc.Nonce = nonce

	ctx, cancel := context.WithTimeout(ctx, b.storeTimeout)
	defer cancel()

	sess := b.resolveSession(ctx, in.SessionID)
	if sess == nil {
		b.resolveAPIKey(ctx, in.APIKey, rc)
		return rc
	}

	user, err := b.dir.UserByID(ctx, sess.UserID)
	if err != nil || user == nil || !user.Active {
		if err != nil {
			slog.Warn("user lookup degraded to anonymous", "error", err)
		}
		return rc
	}

	rc.Subject = user.ID
	rc.SessionID = sess.ID
	rc.CSRFToken = sess.CSRFToken
	rc.CookieSession = in.FromCookie

	if user.Superadmin && b.superadminEnabled && in.ActingTenant != "" {
		b.resolveSuperadmin(ctx, in, user, rc)
		return rc
	}

	if sess.TenantID != nil {
		b.resolveTenant(ctx, user.ID, *sess.TenantID, rc)
	}
	return rc
}

func (b *Builder) resolveSession(ctx context.Context, id string) *models.Session {
	if id == "" {
		return nil
	}
	sess, err := b.sessions.Resolve(ctx, id)
	if err != nil {
		slog.Warn("session resolve degraded to anonymous", "error", err)
		return nil
	}
	return sess
}

// resolveAPIKey grants an alternative, tenant-only principal: no subject,
// member role, scoped to the key's tenant.
func (b *Builder) resolveAPIKey(ctx context.Context, candidate string, rc *RequestContext) {
	if candidate == "" || b.keys == nil {
		return
	}
	tenantID, ok := b.keys.Verify(ctx, candidate)
	if !ok {
		return
	}
	rc.TenantID = tenantID
	rc.Role = models.RoleMember
}

// resolveTenant honors the session's tenant binding only when the
// subject holds a membership there and the tenant is active.
func (b *Builder) resolveTenant(ctx context.Context, userID, tenantID uuid.UUID, rc *RequestContext) {
	tenant, err := b.dir.TenantByID(ctx, tenantID)
	if err != nil || tenant == nil || !tenant.Active {
		return
	}

	role, err := b.dir.MembershipRole(ctx, userID, tenantID)
	if err != nil || role == models.RoleNone {
		return
	}

	rc.TenantID = tenantID
	rc.Role = role
}

// resolveSuperadmin binds the context to the acting tenant without a
// membership check. The bypass is deliberate and always audited.
func (b *Builder) resolveSuperadmin(ctx context.Context, in Input, user *models.User, rc *RequestContext) {
	tenantID, err := uuid.Parse(in.ActingTenant)
	if err != nil {
		return
	}
	tenant, err := b.dir.TenantByID(ctx, tenantID)
	if err != nil || tenant == nil {
		return
	}

	rc.TenantID = tenantID
	rc.Role = models.RoleAdmin
	rc.Superadmin = true

	b.audit.Record(ctx, audit.Event{
		Action:    audit.ActionSuperadmin,
		Outcome:   audit.OutcomeSuccess,
		SubjectID: &user.ID,
		TenantID:  &tenantID,
		IP:        in.ClientIP,
	})
}
