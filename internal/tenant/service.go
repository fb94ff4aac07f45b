package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quentinv/tenantguard/internal/models"
)

// Service is the postgres-backed directory of users, tenants, and
// memberships. Missing rows come back as (nil, nil) / RoleNone so
// callers can fail closed without guessing at error shapes.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		"SELECT id, email, full_name, superadmin, active, created_at FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.Superadmin, &u.Active, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Service) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		"SELECT id, email, full_name, superadmin, active, created_at FROM users WHERE lower(email) = lower($1)", email,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.Superadmin, &u.Active, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

func (s *Service) TenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		"SELECT id, name, slug, active, created_at FROM tenants WHERE id = $1", id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Active, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

// MembershipRole returns the subject's role in the tenant, RoleNone when
// no membership exists. At most one row can match: (user, tenant) is the
// table's primary key.
func (s *Service) MembershipRole(ctx context.Context, userID, tenantID uuid.UUID) (models.Role, error) {
	var role models.Role
	err := s.db.QueryRow(ctx,
		"SELECT role FROM memberships WHERE user_id = $1 AND tenant_id = $2", userID, tenantID,
	).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RoleNone, nil
	}
	if err != nil {
		return models.RoleNone, fmt.Errorf("get membership: %w", err)
	}
	return role, nil
}

// MembershipsByUser lists the subject's memberships in active tenants.
func (s *Service) MembershipsByUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	rows, err := s.db.Query(ctx,
		`SELECT m.user_id, m.tenant_id, m.role, m.created_at
		 FROM memberships m
		 JOIN tenants t ON t.id = m.tenant_id
		 WHERE m.user_id = $1 AND t.active
		 ORDER BY m.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.UserID, &m.TenantID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
