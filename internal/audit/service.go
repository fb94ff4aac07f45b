package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quentinv/tenantguard/internal/models"
)

// Service persists audit events to postgres and serves the admin query
// surface. It also acts as the direct (non-queued) Recorder.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// Record implements Recorder with a synchronous insert. Errors are
// logged, never surfaced: auditing must not alter request outcomes.
func (s *Service) Record(ctx context.Context, e Event) {
	if err := s.Insert(ctx, e); err != nil {
		slog.Error("audit insert failed", "action", e.Action, "error", err)
	}
}

func (s *Service) Insert(ctx context.Context, e Event) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	var detail []byte
	if len(e.Detail) > 0 {
		detail, _ = json.Marshal(e.Detail)
	}

	var ip *netip.Addr
	if e.IP != "" {
		if parsed, err := netip.ParseAddr(e.IP); err == nil {
			ip = &parsed
		}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (tenant_id, user_id, action, outcome, detail, ip_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.TenantID, e.SubjectID, e.Action, e.Outcome, detail, ip, e.Time,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

type Query struct {
	Action string
	Since  *time.Time
	Limit  int
	Offset int
}

// List returns audit records for one tenant, newest first. The tenant
// filter is mandatory: there is no unscoped view on this path.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, q Query) ([]models.AuditLog, error) {
	if tenantID == uuid.Nil {
		return nil, nil
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}

	query := `SELECT id, tenant_id, user_id, action, outcome, detail, ip_address, created_at
			  FROM audit_logs WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	argIdx := 2

	if q.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, q.Action)
		argIdx++
	}
	if q.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *q.Since)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.UserID, &l.Action, &l.Outcome, &l.Detail, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
