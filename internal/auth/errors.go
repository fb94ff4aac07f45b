package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown subject and wrong password
	// alike; callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidSession means the bearer id resolved to nothing.
	ErrInvalidSession = errors.New("invalid session")

	// ErrNotMember means the subject holds no membership in the tenant.
	ErrNotMember = errors.New("not a member of tenant")

	// ErrTenantInactive means the tenant exists but is deactivated.
	ErrTenantInactive = errors.New("tenant is inactive")

	// ErrKeyNotFound means no such API key under the caller's tenant.
	ErrKeyNotFound = errors.New("api key not found")
)
