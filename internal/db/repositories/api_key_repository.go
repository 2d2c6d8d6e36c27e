// Package repositories implements PostgreSQL-backed persistence for
// operator API keys, backing internal/middleware's bearer/API-key auth
// for the Shield and Hive admin HTTP surfaces, limited to the lookup
// and lifecycle operations domain.APIKeyStore actually names.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/shielderr"
)

// APIKeyRepository implements domain.APIKeyStore using PostgreSQL.
type APIKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository creates an APIKeyRepository.
func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create inserts a new API key.
func (r *APIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	query := `
		INSERT INTO api_keys (id, key_hash, name, tier, rate_limit, created_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		key.ID, key.KeyHash, key.Name, key.Tier, key.RateLimit, key.CreatedAt, key.ExpiresAt, false)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// GetByHash retrieves a non-revoked API key by its hashed value.
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash []byte) (*domain.APIKey, error) {
	key := &domain.APIKey{}
	query := `
		SELECT id, key_hash, name, tier, rate_limit, created_at, last_used, expires_at, revoked
		FROM api_keys
		WHERE key_hash = $1 AND revoked = false
		LIMIT 1
	`
	err := r.db.QueryRowContext(ctx, query, keyHash).
		Scan(&key.ID, &key.KeyHash, &key.Name, &key.Tier, &key.RateLimit, &key.CreatedAt, &key.LastUsed, &key.ExpiresAt, &key.Revoked)
	if err == sql.ErrNoRows {
		return nil, shielderr.Wrap(shielderr.KindNotFound, "APIKeyRepository.GetByHash", shielderr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return key, nil
}

// Revoke marks an API key as revoked.
func (r *APIKeyRepository) Revoke(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE api_keys SET revoked = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shielderr.Wrap(shielderr.KindNotFound, "APIKeyRepository.Revoke", shielderr.ErrNotFound)
	}
	return nil
}

// Touch updates the last_used timestamp on successful auth.
func (r *APIKeyRepository) Touch(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shielderr.Wrap(shielderr.KindNotFound, "APIKeyRepository.Touch", shielderr.ErrNotFound)
	}
	return nil
}
