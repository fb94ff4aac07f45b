package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quentinv/tenantguard/internal/auth"
	"github.com/quentinv/tenantguard/internal/models"
)

type Projects struct {
	db *pgxpool.Pool
}

func NewProjects(db *pgxpool.Pool) *Projects {
	return &Projects{db: db}
}

// List returns the context tenant's projects. No tenant, no rows.
func (s *Projects) List(ctx context.Context, rc *auth.RequestContext, limit, offset int) ([]models.Project, error) {
	if !rc.HasTenant() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, name, archived, created_by, created_at
		 FROM projects WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		rc.TenantID, limit, offset,
	)
	if err != nil {
		return nil, wrapErr(err, "list projects")
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Archived, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, wrapErr(err, "scan project")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get reports ErrNotFound both for ids that do not exist and for ids
// owned by another tenant.
func (s *Projects) Get(ctx context.Context, rc *auth.RequestContext, id uuid.UUID) (*models.Project, error) {
	if !rc.HasTenant() {
		return nil, ErrNotFound
	}

	var p models.Project
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, archived, created_by, created_at
		 FROM projects WHERE id = $1 AND tenant_id = $2`,
		id, rc.TenantID,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.Archived, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return nil, scanErr(err, "get project")
	}
	return &p, nil
}

// Create stamps the owning tenant from the request context, never from
// client input.
func (s *Projects) Create(ctx context.Context, rc *auth.RequestContext, name string) (*models.Project, error) {
	if !rc.HasTenant() {
		return nil, ErrNoTenant
	}

	p := models.Project{
		ID:        uuid.New(),
		TenantID:  rc.TenantID,
		Name:      name,
		CreatedBy: rc.Subject,
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO projects (id, tenant_id, name, created_by)
		 VALUES ($1, $2, $3, $4) RETURNING created_at`,
		p.ID, p.TenantID, p.Name, p.CreatedBy,
	).Scan(&p.CreatedAt)
	if err != nil {
		return nil, wrapErr(err, "insert project")
	}
	return &p, nil
}

func (s *Projects) SetArchived(ctx context.Context, rc *auth.RequestContext, id uuid.UUID, archived bool) error {
	if !rc.HasTenant() {
		return ErrNoTenant
	}

	tag, err := s.db.Exec(ctx,
		"UPDATE projects SET archived = $1 WHERE id = $2 AND tenant_id = $3",
		archived, id, rc.TenantID,
	)
	if err != nil {
		return wrapErr(err, "archive project")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Projects) Delete(ctx context.Context, rc *auth.RequestContext, id uuid.UUID) error {
	if !rc.HasTenant() {
		return ErrNoTenant
	}

	tag, err := s.db.Exec(ctx,
		"DELETE FROM projects WHERE id = $1 AND tenant_id = $2",
		id, rc.TenantID,
	)
	if err != nil {
		return wrapErr(err, "delete project")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
