package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bhamnews/briefing-engine/internal/auth"
	"github.com/bhamnews/briefing-engine/internal/domain"
)

// APIKeyRepo implements auth.KeyStore against PostgreSQL.
type APIKeyRepo struct{ db *sql.DB }

// NewAPIKeyRepo creates a Postgres-backed API key store.
func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo { return &APIKeyRepo{db: db} }

func (r *APIKeyRepo) GetByKey(ctx context.Context, key string) (*domain.APIKey, error) {
	k := &domain.APIKey{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, key, COALESCE(name,''), is_active, last_used_at, created_at
		FROM api_keys
		WHERE key = $1
	`, key).Scan(&k.ID, &k.Key, &k.Name, &k.IsActive, &k.LastUsedAt, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}

func (r *APIKeyRepo) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used_at = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}
