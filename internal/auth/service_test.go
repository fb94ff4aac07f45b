package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/models"
)

func newServiceFixture(t *testing.T) (*Service, *builderFixture) {
	t.Helper()
	f := newBuilderFixture(t)
	svc := NewService(NewCredentialStore(nil), f.sessions, f.dir, f.rec)
	return svc, f
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, f := newServiceFixture(t)

	sess, err := svc.Login(context.Background(), "nobody@acme.test", "whatever", "198.51.100.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, sess)

	events := f.rec.byAction(audit.ActionLogin)
	require.Len(t, events, 1)
	assert.Equal(t, audit.OutcomeFailure, events[0].Outcome)
	assert.Nil(t, events[0].SubjectID)
	assert.Equal(t, "198.51.100.1", events[0].IP)
}

func TestLoginInactiveUser(t *testing.T) {
	svc, f := newServiceFixture(t)
	f.user.Active = false

	sess, err := svc.Login(context.Background(), f.user.Email, "whatever", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, sess)
}

func TestLogoutIdempotent(t *testing.T) {
	svc, f := newServiceFixture(t)
	sess := f.login(t)
	rc := &RequestContext{Subject: f.user.ID, SessionID: sess.ID}

	require.NoError(t, svc.Logout(context.Background(), rc, ""))
	require.NoError(t, svc.Logout(context.Background(), rc, ""))

	got, err := f.sessions.Resolve(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLogoutAnonymousNoop(t *testing.T) {
	svc, _ := newServiceFixture(t)

	assert.NoError(t, svc.Logout(context.Background(), nil, ""))
	assert.NoError(t, svc.Logout(context.Background(), &RequestContext{}, ""))
}

func TestSwitchTenantAuthorized(t *testing.T) {
	svc, f := newServiceFixture(t)
	sess := f.login(t)
	rc := &RequestContext{Subject: f.user.ID, SessionID: sess.ID}

	require.NoError(t, svc.SwitchTenant(context.Background(), rc, f.tenant.ID, ""))

	got, err := f.sessions.Resolve(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TenantID)
	assert.Equal(t, f.tenant.ID, *got.TenantID)

	events := f.rec.byAction(audit.ActionTenantSwitch)
	require.Len(t, events, 1)
	assert.Equal(t, audit.OutcomeSuccess, events[0].Outcome)
}

func TestSwitchTenantNotMember(t *testing.T) {
	svc, f := newServiceFixture(t)
	sess := f.login(t)
	rc := &RequestContext{Subject: f.user.ID, SessionID: sess.ID}

	other := &models.Tenant{ID: uuid.New(), Active: true}
	f.dir.tenants[other.ID] = other

	err := svc.SwitchTenant(context.Background(), rc, other.ID, "")
	assert.ErrorIs(t, err, ErrNotMember)

	// Prior binding untouched.
	got, rerr := f.sessions.Resolve(context.Background(), sess.ID)
	require.NoError(t, rerr)
	assert.Nil(t, got.TenantID)

	events := f.rec.byAction(audit.ActionTenantSwitch)
	require.Len(t, events, 1)
	assert.Equal(t, audit.OutcomeDenied, events[0].Outcome)
}

func TestSwitchTenantInactiveTenant(t *testing.T) {
	svc, f := newServiceFixture(t)
	sess := f.login(t)
	rc := &RequestContext{Subject: f.user.ID, SessionID: sess.ID}
	f.tenant.Active = false

	err := svc.SwitchTenant(context.Background(), rc, f.tenant.ID, "")
	assert.ErrorIs(t, err, ErrTenantInactive)
}

func TestSwitchTenantUnauthenticated(t *testing.T) {
	svc, f := newServiceFixture(t)

	err := svc.SwitchTenant(context.Background(), nil, f.tenant.ID, "")
	assert.ErrorIs(t, err, ErrInvalidSession)

	err = svc.SwitchTenant(context.Background(), &RequestContext{}, f.tenant.ID, "")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestMembershipsUnauthenticated(t *testing.T) {
	svc, _ := newServiceFixture(t)

	ms, err := svc.Memberships(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, ms)
}

func TestVerifyDecoyAlwaysFalse(t *testing.T) {
	creds := NewCredentialStore(nil)

	assert.False(t, creds.VerifyDecoy("anything"))
	assert.False(t, creds.VerifyDecoy(""))
}
