package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/models"
)

type fakeDirectory struct {
	users   map[uuid.UUID]*models.User
	byEmail map[string]*models.User
	tenants map[uuid.UUID]*models.Tenant
	roles   map[uuid.UUID]map[uuid.UUID]models.Role
	err     error
}

func (d *fakeDirectory) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.users[id], nil
}

func (d *fakeDirectory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.byEmail[email], nil
}

func (d *fakeDirectory) TenantByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.tenants[id], nil
}

func (d *fakeDirectory) MembershipRole(_ context.Context, userID, tenantID uuid.UUID) (models.Role, error) {
	if d.err != nil {
		return models.RoleNone, d.err
	}
	if m, ok := d.roles[userID]; ok {
		if r, ok := m[tenantID]; ok {
			return r, nil
		}
	}
	return models.RoleNone, nil
}

type fakeKeys struct {
	tenants map[string]uuid.UUID
}

func (k *fakeKeys) Verify(_ context.Context, candidate string) (uuid.UUID, bool) {
	id, ok := k.tenants[candidate]
	return id, ok
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *fakeRecorder) Record(_ context.Context, e audit.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *fakeRecorder) byAction(action string) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type builderFixture struct {
	builder  *Builder
	sessions *MemorySessionStore
	dir      *fakeDirectory
	keys     *fakeKeys
	rec      *fakeRecorder

	user   *models.User
	tenant *models.Tenant
}

func newBuilderFixture(t *testing.T) *builderFixture {
	t.Helper()

	user := &models.User{ID: uuid.New(), Email: "dev@acme.test", Active: true}
	tenant := &models.Tenant{ID: uuid.New(), Name: "Acme", Slug: "acme", Active: true}

	dir := &fakeDirectory{
		users:   map[uuid.UUID]*models.User{user.ID: user},
		byEmail: map[string]*models.User{user.Email: user},
		tenants: map[uuid.UUID]*models.Tenant{tenant.ID: tenant},
		roles: map[uuid.UUID]map[uuid.UUID]models.Role{
			user.ID: {tenant.ID: models.RoleMember},
		},
	}
	sessions := NewMemorySessionStore(30 * time.Minute)
	keys := &fakeKeys{tenants: map[string]uuid.UUID{}}
	rec := &fakeRecorder{}

	return &builderFixture{
		builder:  NewBuilder(sessions, dir, keys, rec, time.Second, false),
		sessions: sessions,
		dir:      dir,
		keys:     keys,
		rec:      rec,
		user:     user,
		tenant:   tenant,
	}
}

func (f *builderFixture) login(t *testing.T) *models.Session {
	t.Helper()
	sess, err := f.sessions.Create(context.Background(), f.user.ID)
	require.NoError(t, err)
	return sess
}

func (f *builderFixture) loginWithTenant(t *testing.T) *models.Session {
	t.Helper()
	sess := f.login(t)
	require.NoError(t, f.sessions.SwitchTenant(context.Background(), sess.ID, f.tenant.ID))
	return sess
}

func TestBuildAnonymous(t *testing.T) {
	f := newBuilderFixture(t)

	rc := f.builder.Build(context.Background(), Input{})

	require.NotNil(t, rc)
	assert.False(t, rc.Authenticated())
	assert.False(t, rc.HasTenant())
	assert.Equal(t, models.RoleNone, rc.Role)
	assert.NotEmpty(t, rc.Nonce, "anonymous contexts still carry a nonce")
}

func TestBuildUnknownSessionDegradesToAnonymous(t *testing.T) {
	f := newBuilderFixture(t)

	rc := f.builder.Build(context.Background(), Input{SessionID: "bogus", FromCookie: true})

	assert.False(t, rc.Authenticated())
	assert.False(t, rc.HasTenant())
}

func TestBuildAuthenticatedWithoutTenant(t *testing.T) {
	f := newBuilderFixture(t)
	sess := f.login(t)

	rc := f.builder.Build(context.Background(), Input{SessionID: sess.ID, FromCookie: true})

	assert.True(t, rc.Authenticated())
	assert.Equal(t, f.user.ID, rc.Subject)
	assert.False(t, rc.HasTenant())
	assert.Equal(t, models.RoleNone, rc.Role)
	assert.Equal(t, sess.CSRFToken, rc.CSRFToken)
	assert.True(t, rc.CookieSession)
}

func TestBuildTenantResolved(t *testing.T) {
	f := newBuilderFixture(t)
	sess := f.loginWithTenant(t)

	rc := f.builder.Build(context.Background(), Input{SessionID: sess.ID, FromCookie: true})

	assert.True(t, rc.Authenticated())
	assert.True(t, rc.HasTenant())
	assert.Equal(t, f.tenant.ID, rc.TenantID)
	assert.Equal(t, models.RoleMember, rc.Role)
	assert.False(t, rc.Superadmin)
}

func TestBuildInactiveTenantNotResolved(t *testing.T) {
	f := newBuilderFixture(t)
	sess := f.loginWithTenant(t)
	f.tenant.Active = false

	rc := f.builder.Build(context.Background(), Input{SessionID: sess.ID, FromCookie: true})

	assert.True(t, rc.Authenticated())
	assert.False(t, rc.HasTenant())
	assert.Equal(t, models.RoleNone, rc.Role)
}

func TestBuildMembershipRevokedNotResolved(t *testing.T) {
	f := newBuilderFixture(t)
	sess := f.loginWithTenant(t)
	delete(f.dir.roles[f.user.ID], f.tenant.ID)

	rc := f.builder.Build(context.Background(), Input{SessionID: sess.ID, FromCookie: true})

	assert.True(t, rc.Authenticated())
	assert.False(t, rc.HasTenant())
}

func TestBuildInactiveUserAnonymous(t *testing.T) {
	f := newBuilderFixture(t)
	sess := f.login(t)
	f.user.Active = false

	rc := f.builder.Build(context.Background(), Input{SessionID: sess.ID, FromCookie: true})

	assert.False(t, rc.Authenticated())
}

func TestBuildDirectoryErrorFailsClosed(t *testing.T) {
	f := newBuilderFixture(t)
	sess := f.login(t)
	f.dir.err = errors.New("store down")

	rc := f.builder.Build(context.Background(), Input{SessionID: sess.ID, FromCookie: true})

	require.NotNil(t, rc)
	assert.False(t, rc.Authenticated())
	assert.False(t, rc.HasTenant())
	assert.NotEmpty(t, rc.Nonce)
}

func TestBuildAPIKeyPrincipal(t *testing.T) {
	f := newBuilderFixture(t)
	f.keys.tenants["tg_validkey"] = f.tenant.ID

	rc := f.builder.Build(context.Background(), Input{APIKey: "tg_validkey"})

	assert.False(t, rc.Authenticated(), "api keys carry no user subject")
	assert.True(t, rc.HasTenant())
	assert.Equal(t, f.tenant.ID, rc.TenantID)
	assert.Equal(t, models.RoleMember, rc.Role)
	assert.False(t, rc.CookieSession)
}

func TestBuildInvalidAPIKeyAnonymous(t *testing.T) {
	f := newBuilderFixture(t)

	rc := f.builder.Build(context.Background(), Input{APIKey: "tg_bogus"})

	assert.False(t, rc.Authenticated())
	assert.False(t, rc.HasTenant())
}

func TestBuildSuperadminActingTenant(t *testing.T) {
	f := newBuilderFixture(t)
	f.user.Superadmin = true
	other := &models.Tenant{ID: uuid.New(), Name: "Other", Slug: "other", Active: true}
	f.dir.tenants[other.ID] = other
	sess := f.login(t)

	enabled := NewBuilder(f.sessions, f.dir, f.keys, f.rec, time.Second, true)
	rc := enabled.Build(context.Background(), Input{
		SessionID:    sess.ID,
		FromCookie:   true,
		ActingTenant: other.ID.String(),
	})

	assert.True(t, rc.Superadmin)
	assert.Equal(t, other.ID, rc.TenantID)
	assert.Equal(t, models.RoleAdmin, rc.Role)

	events := f.rec.byAction(audit.ActionSuperadmin)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].TenantID)
	assert.Equal(t, other.ID, *events[0].TenantID)
}

func TestBuildSuperadminDisabledIgnoresActingTenant(t *testing.T) {
	f := newBuilderFixture(t)
	f.user.Superadmin = true
	sess := f.login(t)

	rc := f.builder.Build(context.Background(), Input{
		SessionID:    sess.ID,
		FromCookie:   true,
		ActingTenant: f.tenant.ID.String(),
	})

	assert.False(t, rc.Superadmin)
	assert.False(t, rc.HasTenant())
	assert.Empty(t, f.rec.byAction(audit.ActionSuperadmin))
}

func TestBuildNonSuperadminIgnoresActingTenant(t *testing.T) {
	f := newBuilderFixture(t)
	sess := f.loginWithTenant(t)

	enabled := NewBuilder(f.sessions, f.dir, f.keys, f.rec, time.Second, true)
	other := &models.Tenant{ID: uuid.New(), Active: true}
	f.dir.tenants[other.ID] = other

	rc := enabled.Build(context.Background(), Input{
		SessionID:    sess.ID,
		FromCookie:   true,
		ActingTenant: other.ID.String(),
	})

	// The header is inert for regular users; the session binding wins.
	assert.False(t, rc.Superadmin)
	assert.Equal(t, f.tenant.ID, rc.TenantID)
	assert.Equal(t, models.RoleMember, rc.Role)
}

func TestBuildNoncesDiffer(t *testing.T) {
	f := newBuilderFixture(t)

	a := f.builder.Build(context.Background(), Input{})
	b := f.builder.Build(context.Background(), Input{})

	assert.NotEqual(t, a.Nonce, b.Nonce)
}
