// Package journey implements cross-device identity linking: resolving a
// device to its effective identity, issuing and redeeming backup keys,
// attaching devices into journeys, merging the history of a newly attached
// device, and the simpler single-use migration-token transfer.
package journey

import (
	"context"
	"time"

	"github.com/ventline/ventline-api/internal/model"
)

// LinkStore is the persistence surface for journeys and device links.
// Implemented by repository.JourneyRepo; tests substitute in-memory fakes.
type LinkStore interface {
	GetLink(ctx context.Context, deviceHash string) (model.DeviceLink, error)
	GetJourney(ctx context.Context, id string) (model.Journey, error)
	EnsureForDevice(ctx context.Context, deviceID, deviceHash string) (model.Journey, bool, error)
	AttachDevice(ctx context.Context, journeyID, deviceID, deviceHash string) (bool, error)
	DetachDevice(ctx context.Context, journeyID, deviceHash string) (bool, error)
	SetLastKeyPreview(ctx context.Context, journeyID, preview string) error
}

// KeyStore persists backup-key records.
type KeyStore interface {
	Insert(ctx context.Context, k model.IdentityKey) error
	GetByHash(ctx context.Context, keyHash string) (model.IdentityKey, error)
}

// StatsStore is the slice of the stats repository the merge engine needs.
type StatsStore interface {
	GetWithLegacyFallback(ctx context.Context, deviceHash, rawDeviceID string) (model.DeviceStats, error)
	Get(ctx context.Context, deviceHash string) (model.DeviceStats, error)
	Upsert(ctx context.Context, s model.DeviceStats) error
	Delete(ctx context.Context, deviceHash string) error
}

// ContentStore is the slice of the content repository the merge engine and
// status endpoint need: ownership discovery under both keying schemes and
// per-record re-pointing.
type ContentStore interface {
	MessageIDsByOwnerHash(ctx context.Context, deviceHash string) ([]string, error)
	MessageIDsByLegacyID(ctx context.Context, rawDeviceID string) ([]string, error)
	RepointMessage(ctx context.Context, id, newOwnerHash string) error
	ResponseIDsByOwnerHash(ctx context.Context, deviceHash string) ([]string, error)
	ResponseIDsByLegacyID(ctx context.Context, rawDeviceID string) ([]string, error)
	RepointResponse(ctx context.Context, id, newOwnerHash string) error
	CountByOwner(ctx context.Context, deviceHash, rawDeviceID string) (int, error)
}

// TokenStore persists migration tokens.
type TokenStore interface {
	Insert(ctx context.Context, t model.MigrationToken) error
	Redeem(ctx context.Context, tokenHash string, now time.Time) (model.MigrationToken, error)
}
