package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	FullName   string    `json:"full_name,omitempty" db:"full_name"`
	Superadmin bool      `json:"superadmin" db:"superadmin"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Credential pairs a user with its password hash. The hash is an encoded
// argon2id string carrying its own salt and parameters; the raw password
// never appears outside the verify path.
type Credential struct {
	UserID       uuid.UUID `db:"user_id"`
	PasswordHash string    `db:"password_hash"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type APIKey struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	TenantID   uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	KeyHash    string     `json:"-" db:"key_hash"`
	KeyPrefix  string     `json:"key_prefix" db:"key_prefix"`
	Name       string     `json:"name" db:"name"`
	Revoked    bool       `json:"revoked" db:"revoked"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Session is the server-side record behind an opaque bearer id. The id
// itself is the only credential; whoever presents it is the session.
// The JSON form is the session-store storage codec, never a client
// response shape: the id stays in the store key, not the value.
type Session struct {
	ID         string     `json:"-"`
	UserID     uuid.UUID  `json:"user_id"`
	TenantID   *uuid.UUID `json:"tenant_id,omitempty"`
	CSRFToken  string     `json:"csrf_token"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt time.Time  `json:"last_seen_at"`
}
