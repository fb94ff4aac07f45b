package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/quentinv/tenantguard/internal/audit"
)

type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

// AuditWorker persists queued audit events.
type AuditWorker struct {
	svc *audit.Service
}

func NewAuditWorker(svc *audit.Service) *AuditWorker {
	return &AuditWorker{svc: svc}
}

func (w *AuditWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var e audit.Event
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		// Malformed payloads never become valid; don't retry.
		return fmt.Errorf("unmarshal audit event: %v: %w", err, asynq.SkipRetry)
	}
	return w.svc.Insert(ctx, e)
}
