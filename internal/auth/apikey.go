package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quentinv/tenantguard/internal/models"
)

const (
	apiKeyPrefixLen = 8
	apiKeyRawBytes  = 24
)

// APIKeys issues and verifies tenant API keys. Only the keyed hash of a
// key is ever persisted; the raw key is returned once at issuance and is
// unrecoverable afterwards.
type APIKeys struct {
	db     *pgxpool.Pool
	secret []byte
}

func NewAPIKeys(db *pgxpool.Pool, secret string) *APIKeys {
	return &APIKeys{db: db, secret: []byte(secret)}
}

// Issue generates a fresh key for tenantID and stores its HMAC plus a
// short display prefix. The returned raw key is shown to the caller
// exactly once.
func (k *APIKeys) Issue(ctx context.Context, tenantID uuid.UUID, name string) (string, *models.APIKey, error) {
	raw, err := generateRawKey()
	if err != nil {
		return "", nil, err
	}

	key := models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		KeyHash:   hashKey(k.secret, raw),
		KeyPrefix: keyPrefix(raw),
		Name:      name,
	}

	err = k.db.QueryRow(ctx,
		`INSERT INTO api_keys (id, tenant_id, key_hash, key_prefix, name)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		key.ID, key.TenantID, key.KeyHash, key.KeyPrefix, key.Name,
	).Scan(&key.CreatedAt)
	if err != nil {
		return "", nil, fmt.Errorf("insert api key: %w", err)
	}

	return raw, &key, nil
}

// Verify resolves a candidate key to its tenant. Revoked keys and keys
// of inactive tenants resolve to nothing, even when the hash matches.
// The stored hash is re-compared in constant time on top of the indexed
// lookup.
func (k *APIKeys) Verify(ctx context.Context, candidate string) (uuid.UUID, bool) {
	if candidate == "" {
		return uuid.Nil, false
	}

	hash := hashKey(k.secret, candidate)

	var (
		id        uuid.UUID
		tenantID  uuid.UUID
		storedHex string
	)
	err := k.db.QueryRow(ctx,
		`SELECT a.id, a.tenant_id, a.key_hash
		 FROM api_keys a
		 JOIN tenants t ON t.id = a.tenant_id
		 WHERE a.key_hash = $1 AND NOT a.revoked AND t.active`,
		hash,
	).Scan(&id, &tenantID, &storedHex)
	if err != nil {
		return uuid.Nil, false
	}

	if subtle.ConstantTimeCompare([]byte(storedHex), []byte(hash)) != 1 {
		return uuid.Nil, false
	}

	// Best-effort usage stamp; failure must not fail verification.
	_, _ = k.db.Exec(ctx, "UPDATE api_keys SET last_used_at = $1 WHERE id = $2", time.Now().UTC(), id)

	return tenantID, true
}

// Revoke flips the revoked flag for a key owned by tenantID. Keys of
// other tenants are invisible here: zero rows updated reports not found.
func (k *APIKeys) Revoke(ctx context.Context, tenantID, keyID uuid.UUID) error {
	tag, err := k.db.Exec(ctx,
		"UPDATE api_keys SET revoked = TRUE WHERE id = $1 AND tenant_id = $2",
		keyID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("api key %s: %w", keyID, ErrKeyNotFound)
	}
	return nil
}

// List returns the tenant's keys, hashes omitted by the model's JSON tags.
func (k *APIKeys) List(ctx context.Context, tenantID uuid.UUID) ([]models.APIKey, error) {
	rows, err := k.db.Query(ctx,
		`SELECT id, tenant_id, key_hash, key_prefix, name, revoked, last_used_at, created_at
		 FROM api_keys WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		var key models.APIKey
		if err := rows.Scan(&key.ID, &key.TenantID, &key.KeyHash, &key.KeyPrefix, &key.Name, &key.Revoked, &key.LastUsedAt, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func generateRawKey() (string, error) {
	buf := make([]byte, apiKeyRawBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return "tg_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashKey computes the keyed hash stored for a raw key. A plain digest
// would let a leaked database be brute-forced offline; the HMAC secret
// stays outside the database.
func hashKey(secret []byte, raw string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func keyPrefix(raw string) string {
	if len(raw) < apiKeyPrefixLen {
		return raw
	}
	return raw[:apiKeyPrefixLen]
}
