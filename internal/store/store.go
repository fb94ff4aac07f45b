// Package store is the tenant-scoped data accessor: the only path by
// which handlers touch tenant-owned records. Every query is filtered by
// the tenant resolved on the request context; a context without a tenant
// reads nothing and writes nothing. Records of other tenants are
// indistinguishable from records that do not exist.
package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound covers both genuinely missing records and records
	// owned by another tenant. The two must stay indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrNoTenant rejects writes from contexts with no resolved tenant.
	ErrNoTenant = errors.New("no tenant in request context")
)

// scanErr maps a row miss under a tenant filter to ErrNotFound and
// passes other failures through.
func scanErr(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return wrapErr(err, op)
}

func wrapErr(err error, op string) error {
	return fmt.Errorf("%s: %w", op, err)
}
