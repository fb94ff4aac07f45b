package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/quentinv/tenantguard/internal/models"
	"github.com/quentinv/tenantguard/internal/secure"
)

const sessionKeyPrefix = "session:"

// RedisSessionStore shares sessions across processes. The idle timeout
// rides on the key TTL, refreshed on every resolve. Tenant switches run
// under WATCH so a concurrent destroy or switch on the same id retries
// instead of clobbering.
type RedisSessionStore struct {
	client      *redis.Client
	idleTimeout time.Duration
}

func NewRedisSessionStore(client *redis.Client, idleTimeout time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, idleTimeout: idleTimeout}
}

func (s *RedisSessionStore) Create(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	id, err := secure.NewToken()
	if err != nil {
		return nil, err
	}
	csrf, err := secure.NewToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &models.Session{
		ID:         id,
		UserID:     userID,
		CSRFToken:  csrf,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := s.write(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *RedisSessionStore) Resolve(ctx context.Context, id string) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// Corrupt record: drop it rather than guess.
		_ = s.client.Del(ctx, sessionKeyPrefix+id).Err()
		return nil, nil
	}
	sess.ID = id

	sess.LastSeenAt = time.Now().UTC()
	if err := s.write(ctx, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *RedisSessionStore) SwitchTenant(ctx context.Context, id string, tenantID uuid.UUID) error {
	key := sessionKeyPrefix + id

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrInvalidSession
		}
		if err != nil {
			return err
		}

		var sess models.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return ErrInvalidSession
		}
		tid := tenantID
		sess.TenantID = &tid

		updated, err := json.Marshal(&sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.idleTimeout)
			return nil
		})
		return err
	}

	for range 3 {
		err := s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			if err != nil && !errors.Is(err, ErrInvalidSession) {
				return fmt.Errorf("switch tenant: %w", err)
			}
			return err
		}
	}
	return fmt.Errorf("switch tenant: too many conflicts on session update")
}

func (s *RedisSessionStore) Destroy(ctx context.Context, id string) error {
	// DEL of a missing key is a no-op, which keeps destroy idempotent.
	if err := s.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) write(ctx context.Context, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.ID, data, s.idleTimeout).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}
