package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actions emitted by the security pipeline.
const (
	ActionLogin          = "auth.login"
	ActionLogout         = "auth.logout"
	ActionPasswordChange = "auth.password_change"
	ActionTenantSwitch   = "auth.tenant_switch"
	ActionSuperadmin     = "auth.superadmin_mode"
	ActionRateLimit      = "request.rate_limited"
	ActionCSRFReject     = "request.csrf_rejected"
	ActionRedirectReject = "request.redirect_rejected"
	ActionAPIKeyIssue    = "apikey.issue"
	ActionAPIKeyRevoke   = "apikey.revoke"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// Event is one structured audit record. Subject and tenant are nil when
// the request had none resolved.
type Event struct {
	Time      time.Time         `json:"time"`
	Action    string            `json:"action"`
	Outcome   string            `json:"outcome"`
	SubjectID *uuid.UUID        `json:"subject_id,omitempty"`
	TenantID  *uuid.UUID        `json:"tenant_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Recorder accepts events from the request path. Implementations must
// never fail the request they are auditing: delivery problems are logged
// and swallowed.
type Recorder interface {
	Record(ctx context.Context, e Event)
}
