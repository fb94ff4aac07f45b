package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quentinv/tenantguard/internal/auth"
	"github.com/quentinv/tenantguard/internal/models"
)

type Tasks struct {
	db *pgxpool.Pool
}

func NewTasks(db *pgxpool.Pool) *Tasks {
	return &Tasks{db: db}
}

// ListByProject scopes twice: the project must belong to the context
// tenant and so must every task. A foreign project id yields no rows,
// same as a missing one.
func (s *Tasks) ListByProject(ctx context.Context, rc *auth.RequestContext, projectID uuid.UUID, limit, offset int) ([]models.Task, error) {
	if !rc.HasTenant() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, project_id, title, status, assignee_id, created_at
		 FROM tasks WHERE tenant_id = $1 AND project_id = $2
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		rc.TenantID, projectID, limit, offset,
	)
	if err != nil {
		return nil, wrapErr(err, "list tasks")
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *Tasks) Get(ctx context.Context, rc *auth.RequestContext, id uuid.UUID) (*models.Task, error) {
	if !rc.HasTenant() {
		return nil, ErrNotFound
	}

	var t models.Task
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, project_id, title, status, assignee_id, created_at
		 FROM tasks WHERE id = $1 AND tenant_id = $2`,
		id, rc.TenantID,
	).Scan(&t.ID, &t.TenantID, &t.ProjectID, &t.Title, &t.Status, &t.AssigneeID, &t.CreatedAt)
	if err != nil {
		return nil, scanErr(err, "get task")
	}
	return &t, nil
}

// Create stamps the tenant from the context and verifies, in the same
// statement, that the target project belongs to that tenant. A foreign
// project inserts nothing and reports not found.
func (s *Tasks) Create(ctx context.Context, rc *auth.RequestContext, projectID uuid.UUID, title string, assigneeID *uuid.UUID) (*models.Task, error) {
	if !rc.HasTenant() {
		return nil, ErrNoTenant
	}

	t := models.Task{
		ID:         uuid.New(),
		TenantID:   rc.TenantID,
		ProjectID:  projectID,
		Title:      title,
		Status:     models.TaskStatusOpen,
		AssigneeID: assigneeID,
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO tasks (id, tenant_id, project_id, title, status, assignee_id)
		 SELECT $1, $2, $3, $4, $5, $6
		 WHERE EXISTS (SELECT 1 FROM projects WHERE id = $3 AND tenant_id = $2)
		 RETURNING created_at`,
		t.ID, t.TenantID, t.ProjectID, t.Title, t.Status, t.AssigneeID,
	).Scan(&t.CreatedAt)
	if err != nil {
		return nil, scanErr(err, "insert task")
	}
	return &t, nil
}

func (s *Tasks) SetStatus(ctx context.Context, rc *auth.RequestContext, id uuid.UUID, status models.TaskStatus) error {
	if !rc.HasTenant() {
		return ErrNoTenant
	}

	tag, err := s.db.Exec(ctx,
		"UPDATE tasks SET status = $1 WHERE id = $2 AND tenant_id = $3",
		status, id, rc.TenantID,
	)
	if err != nil {
		return wrapErr(err, "update task status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Tasks) Delete(ctx context.Context, rc *auth.RequestContext, id uuid.UUID) error {
	if !rc.HasTenant() {
		return ErrNoTenant
	}

	tag, err := s.db.Exec(ctx,
		"DELETE FROM tasks WHERE id = $1 AND tenant_id = $2",
		id, rc.TenantID,
	)
	if err != nil {
		return wrapErr(err, "delete task")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Export returns every task of the context tenant, for the export
// endpoint (its own rate-limit class).
func (s *Tasks) Export(ctx context.Context, rc *auth.RequestContext) ([]models.Task, error) {
	if !rc.HasTenant() {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, project_id, title, status, assignee_id, created_at
		 FROM tasks WHERE tenant_id = $1 ORDER BY created_at`,
		rc.TenantID,
	)
	if err != nil {
		return nil, wrapErr(err, "export tasks")
	}
	defer rows.Close()

	return scanTasks(rows)
}

func scanTasks(rows pgx.Rows) ([]models.Task, error) {
	var out []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.TenantID, &t.ProjectID, &t.Title, &t.Status, &t.AssigneeID, &t.CreatedAt); err != nil {
			return nil, wrapErr(err, "scan task")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
