package model

import "time"

// MigrationToken models a row in the `migration_tokens` table.  Unlike a
// backup key, a migration token transfers exclusive recognition of one
// historical device identity to a new device: it is single-use and
// time-boxed, and is marked consumed on first successful redemption.
//
// Fields:
//  TokenHash – migration_tokens.token_hash (primary key, SHA-256 digest).
//  DeviceID  – historical device identity the token transfers.
//  ExpiresAt – end of the validity window.
//  UsedAt    – when the token was redeemed (null while unused).
//  CreatedAt – issuance timestamp.
type MigrationToken struct {
	TokenHash string     // migration_tokens.token_hash
	DeviceID  string     // migration_tokens.device_id
	ExpiresAt time.Time  // migration_tokens.expires_at
	UsedAt    *time.Time // migration_tokens.used_at (nullable)
	CreatedAt time.Time  // migration_tokens.created_at
}

// IsExpired reports whether the token's validity window has passed.
func (t *MigrationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsUsed reports whether the token has already been redeemed.
func (t *MigrationToken) IsUsed() bool { return t.UsedAt != nil }
