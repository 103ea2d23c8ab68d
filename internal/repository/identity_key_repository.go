package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ventline/ventline-api/internal/model"
)

// KeyRepo persists backup-key records (hash, journey, preview).  The
// plaintext key never reaches this layer.
type KeyRepo struct{ DB *sql.DB }

func NewKeyRepo(db *sql.DB) *KeyRepo { return &KeyRepo{DB: db} }

// Insert stores a freshly issued key record.
func (r *KeyRepo) Insert(ctx context.Context, k model.IdentityKey) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO identity_keys (key_hash, journey_id, key_preview, created_at) VALUES (?,?,?,?)",
		k.KeyHash, k.JourneyID, k.Preview, k.CreatedAt)
	return err
}

// GetByHash looks up a key record by its stored hash.  Returns ErrNotFound
// for keys that were never issued.
func (r *KeyRepo) GetByHash(ctx context.Context, keyHash string) (model.IdentityKey, error) {
	var k model.IdentityKey
	err := r.DB.QueryRowContext(ctx,
		"SELECT key_hash, journey_id, key_preview, created_at FROM identity_keys WHERE key_hash=? LIMIT 1",
		keyHash).Scan(&k.KeyHash, &k.JourneyID, &k.Preview, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.IdentityKey{}, ErrNotFound
	}
	return k, err
}
