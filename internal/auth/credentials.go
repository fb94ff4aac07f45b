package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialStore holds password hashes and nothing else: pure lookup
// and verify, no policy.
type CredentialStore struct {
	db *pgxpool.Pool

	decoyOnce sync.Once
	decoyHash string
}

func NewCredentialStore(db *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{db: db}
}

// Verify checks candidate against the stored hash for userID. A missing
// credential row burns the same argon2 work as a wrong password, so the
// two outcomes share one timing envelope and one result.
func (s *CredentialStore) Verify(ctx context.Context, userID uuid.UUID, candidate string) bool {
	var hash string
	err := s.db.QueryRow(ctx,
		"SELECT password_hash FROM credentials WHERE user_id = $1", userID,
	).Scan(&hash)
	if err != nil {
		s.VerifyDecoy(candidate)
		return false
	}
	return VerifyPassword(candidate, hash)
}

// VerifyDecoy runs a full verification against a throwaway hash. Called
// on the unknown-subject path so its cost matches a real verify. Always
// returns false.
func (s *CredentialStore) VerifyDecoy(candidate string) bool {
	s.decoyOnce.Do(func() {
		h, err := HashPassword(uuid.NewString())
		if err == nil {
			s.decoyHash = h
		}
	})
	if s.decoyHash == "" {
		return false
	}
	VerifyPassword(candidate, s.decoyHash)
	return false
}

// SetPassword re-derives a hash under a fresh salt and upserts it.
func (s *CredentialStore) SetPassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO credentials (user_id, password_hash, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET password_hash = $2, updated_at = now()`,
		userID, hash,
	)
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// HasCredential reports whether a credential row exists. Used only by
// administrative tooling, never on the login path.
func (s *CredentialStore) HasCredential(ctx context.Context, userID uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRow(ctx,
		"SELECT 1 FROM credentials WHERE user_id = $1", userID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check credential: %w", err)
	}
	return true, nil
}
