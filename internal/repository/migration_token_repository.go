package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ventline/ventline-api/internal/model"
)

// MigrationTokenRepo persists single-use migration tokens.  Redemption is
// transactional: the token row is locked, validated and marked consumed in
// one unit so two concurrent redemptions cannot both succeed.
type MigrationTokenRepo struct{ DB *sql.DB }

func NewMigrationTokenRepo(db *sql.DB) *MigrationTokenRepo { return &MigrationTokenRepo{DB: db} }

// Insert stores a freshly issued token record.
func (r *MigrationTokenRepo) Insert(ctx context.Context, t model.MigrationToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO migration_tokens (token_hash, device_id, expires_at, used_at, created_at) VALUES (?,?,?,NULL,?)",
		t.TokenHash, t.DeviceID, t.ExpiresAt, t.CreatedAt)
	return err
}

// Redeem consumes a token, returning the record on success.  Failure modes
// stay distinct: ErrNotFound for unknown tokens, ErrTokenUsed after a prior
// redemption, ErrTokenExpired past the validity window.  Expired and used
// tokens are left in place untouched.
func (r *MigrationTokenRepo) Redeem(ctx context.Context, tokenHash string, now time.Time) (model.MigrationToken, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.MigrationToken{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		t      model.MigrationToken
		usedAt sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		"SELECT token_hash, device_id, expires_at, used_at, created_at FROM migration_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE",
		tokenHash).Scan(&t.TokenHash, &t.DeviceID, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MigrationToken{}, ErrNotFound
	}
	if err != nil {
		return model.MigrationToken{}, err
	}
	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
		return model.MigrationToken{}, ErrTokenUsed
	}
	if t.IsExpired(now) {
		return model.MigrationToken{}, ErrTokenExpired
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE migration_tokens SET used_at=? WHERE token_hash=?",
		now, tokenHash); err != nil {
		return model.MigrationToken{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.MigrationToken{}, err
	}
	t.UsedAt = &now
	return t, nil
}
