package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quentinv/tenantguard/internal/models"
	"github.com/quentinv/tenantguard/internal/secure"
)

// SessionStore maps opaque bearer ids to sessions. Resolve on an unknown
// or expired id returns (nil, nil); the caller proceeds as anonymous and
// learns nothing about whether the id ever existed. Destroy is
// idempotent. SwitchTenant applies the already-authorized binding change;
// authorization lives in Service.SwitchTenant.
type SessionStore interface {
	Create(ctx context.Context, userID uuid.UUID) (*models.Session, error)
	Resolve(ctx context.Context, id string) (*models.Session, error)
	SwitchTenant(ctx context.Context, id string, tenantID uuid.UUID) error
	Destroy(ctx context.Context, id string) error
}

// MemorySessionStore keeps sessions in a mutex-guarded map. The mutex
// also serializes tenant switches against concurrent resolves, so no
// request observes a half-updated binding.
type MemorySessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*models.Session
	idleTimeout time.Duration
	now         func() time.Time
}

func NewMemorySessionStore(idleTimeout time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions:    make(map[string]*models.Session),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

func (s *MemorySessionStore) Create(_ context.Context, userID uuid.UUID) (*models.Session, error) {
	id, err := secure.NewToken()
	if err != nil {
		return nil, err
	}
	csrf, err := secure.NewToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &models.Session{
		ID:         id,
		UserID:     userID,
		CSRFToken:  csrf,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	out := *sess
	return &out, nil
}

func (s *MemorySessionStore) Resolve(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}

	now := s.now()
	if now.Sub(sess.LastSeenAt) > s.idleTimeout {
		delete(s.sessions, id)
		return nil, nil
	}
	sess.LastSeenAt = now

	out := *sess
	return &out, nil
}

func (s *MemorySessionStore) SwitchTenant(_ context.Context, id string, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrInvalidSession
	}
	tid := tenantID
	sess.TenantID = &tid
	return nil
}

func (s *MemorySessionStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Len reports live sessions, expired ones included until next resolve.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
