package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/models"
)

// Service orchestrates the credential and session stores for the
// authentication operations handlers expose. All dependencies are
// injected; the service owns no hidden state.
type Service struct {
	creds    *CredentialStore
	sessions SessionStore
	dir      Directory
	audit    audit.Recorder
}

func NewService(creds *CredentialStore, sessions SessionStore, dir Directory, rec audit.Recorder) *Service {
	return &Service{creds: creds, sessions: sessions, dir: dir, audit: rec}
}

// Login verifies the password and creates a session. Unknown email and
// wrong password produce the same error, the same shape, and comparable
// timing: the unknown-email path still burns a full hash verification.
func (s *Service) Login(ctx context.Context, email, password, clientIP string) (*models.Session, error) {
	user, err := s.dir.UserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user == nil || !user.Active {
		s.creds.VerifyDecoy(password)
		s.recordLogin(ctx, nil, clientIP, audit.OutcomeFailure)
		return nil, ErrInvalidCredentials
	}

	if !s.creds.Verify(ctx, user.ID, password) {
		s.recordLogin(ctx, &user.ID, clientIP, audit.OutcomeFailure)
		return nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.recordLogin(ctx, &user.ID, clientIP, audit.OutcomeSuccess)
	return sess, nil
}

// Logout destroys the session. Destroying an already-destroyed session
// is a no-op.
func (s *Service) Logout(ctx context.Context, rc *RequestContext, clientIP string) error {
	if rc == nil || rc.SessionID == "" {
		return nil
	}
	if err := s.sessions.Destroy(ctx, rc.SessionID); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}

	subject := rc.Subject
	s.audit.Record(ctx, audit.Event{
		Action:    audit.ActionLogout,
		Outcome:   audit.OutcomeSuccess,
		SubjectID: &subject,
		IP:        clientIP,
	})
	return nil
}

// SwitchTenant rebinds the session to tenantID, but only when the
// subject holds a membership there and the tenant is active. On any
// failure the prior binding is retained untouched.
func (s *Service) SwitchTenant(ctx context.Context, rc *RequestContext, tenantID uuid.UUID, clientIP string) error {
	if rc == nil || !rc.Authenticated() || rc.SessionID == "" {
		return ErrInvalidSession
	}

	tenant, err := s.dir.TenantByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("lookup tenant: %w", err)
	}
	if tenant == nil || !tenant.Active {
		s.recordSwitch(ctx, rc.Subject, tenantID, clientIP, audit.OutcomeDenied)
		return ErrTenantInactive
	}

	role, err := s.dir.MembershipRole(ctx, rc.Subject, tenantID)
	if err != nil {
		return fmt.Errorf("lookup membership: %w", err)
	}
	if role == models.RoleNone {
		s.recordSwitch(ctx, rc.Subject, tenantID, clientIP, audit.OutcomeDenied)
		return ErrNotMember
	}

	if err := s.sessions.SwitchTenant(ctx, rc.SessionID, tenantID); err != nil {
		return fmt.Errorf("switch tenant: %w", err)
	}

	s.recordSwitch(ctx, rc.Subject, tenantID, clientIP, audit.OutcomeSuccess)
	return nil
}

// ChangePassword re-verifies the current password before setting the new
// one under a fresh salt.
func (s *Service) ChangePassword(ctx context.Context, rc *RequestContext, current, next string) error {
	if rc == nil || !rc.Authenticated() {
		return ErrInvalidSession
	}
	if !s.creds.Verify(ctx, rc.Subject, current) {
		return ErrInvalidCredentials
	}
	if err := s.creds.SetPassword(ctx, rc.Subject, next); err != nil {
		return err
	}

	subject := rc.Subject
	s.audit.Record(ctx, audit.Event{
		Action:    audit.ActionPasswordChange,
		Outcome:   audit.OutcomeSuccess,
		SubjectID: &subject,
	})
	return nil
}

// Memberships lists the tenants the subject may act in, for the tenant
// selection surface.
func (s *Service) Memberships(ctx context.Context, rc *RequestContext) ([]models.Membership, error) {
	if rc == nil || !rc.Authenticated() {
		return nil, nil
	}
	lister, ok := s.dir.(MembershipLister)
	if !ok {
		return nil, nil
	}
	return lister.MembershipsByUser(ctx, rc.Subject)
}

// MembershipLister is implemented by directories that can enumerate a
// subject's memberships.
type MembershipLister interface {
	MembershipsByUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
}

func (s *Service) recordLogin(ctx context.Context, subject *uuid.UUID, ip, outcome string) {
	s.audit.Record(ctx, audit.Event{
		Action:    audit.ActionLogin,
		Outcome:   outcome,
		SubjectID: subject,
		IP:        ip,
	})
}

func (s *Service) recordSwitch(ctx context.Context, subject, tenant uuid.UUID, ip, outcome string) {
	s.audit.Record(ctx, audit.Event{
		Action:    audit.ActionTenantSwitch,
		Outcome:   outcome,
		SubjectID: &subject,
		TenantID:  &tenant,
		IP:        ip,
	})
}
