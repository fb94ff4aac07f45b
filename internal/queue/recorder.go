package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/quentinv/tenantguard/internal/audit"
)

// Recorder implements audit.Recorder by enqueueing events for the
// worker, falling back to a direct insert when the queue is down.
// Either way the request being audited is never failed.
type Recorder struct {
	client   *Client
	fallback *audit.Service
}

func NewRecorder(client *Client, fallback *audit.Service) *Recorder {
	return &Recorder{client: client, fallback: fallback}
}

func (r *Recorder) Record(ctx context.Context, e audit.Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	err := r.client.EnqueueAuditEvent(e)
	if err == nil {
		return
	}
	slog.Warn("audit enqueue failed, inserting directly", "action", e.Action, "error", err)

	if r.fallback != nil {
		r.fallback.Record(ctx, e)
	}
}
