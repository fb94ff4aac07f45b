package models

import (
	"encoding/json"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	TenantID  *uuid.UUID      `json:"tenant_id,omitempty" db:"tenant_id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Action    string          `json:"action" db:"action"`
	Outcome   string          `json:"outcome" db:"outcome"`
	Detail    json.RawMessage `json:"detail,omitempty" db:"detail"`
	IPAddress *netip.Addr     `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
