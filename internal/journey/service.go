package journey

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ventline/ventline-api/internal/identity"
	"github.com/ventline/ventline-api/internal/model"
	"github.com/ventline/ventline-api/internal/repository"
)

// Service orchestrates journey lifecycle operations: lazy journey creation,
// backup-key issue and redemption, history merging and migration tokens.
// All mutual exclusion is delegated to the stores' transactional primitives;
// the service holds no in-process state beyond its dependencies.
type Service struct {
	links    LinkStore
	keys     KeyStore
	tokens   TokenStore
	merger   *Merger
	content  ContentStore
	hasher   *identity.Hasher
	keySalt  string
	tokenTTL time.Duration
}

// NewService wires a Service.  keySalt is the process-wide salt for
// backup-key hashing; tokenTTL bounds migration-token validity.
func NewService(links LinkStore, keys KeyStore, tokens TokenStore, merger *Merger, content ContentStore, hasher *identity.Hasher, keySalt string, tokenTTL time.Duration) *Service {
	return &Service{
		links:    links,
		keys:     keys,
		tokens:   tokens,
		merger:   merger,
		content:  content,
		hasher:   hasher,
		keySalt:  keySalt,
		tokenTTL: tokenTTL,
	}
}

// Hash applies the service's identity hasher to a raw device identifier.
func (s *Service) Hash(deviceID string) string {
	return s.hasher.Hash(deviceID)
}

// EnsureJourney idempotently guarantees a journey exists for the device and
// returns its snapshot.  Concurrent first calls converge on one journey.
func (s *Service) EnsureJourney(ctx context.Context, deviceID string) (model.Journey, error) {
	j, _, err := s.links.EnsureForDevice(ctx, deviceID, s.hasher.Hash(deviceID))
	if err != nil {
		return model.Journey{}, storeErr(err)
	}
	return j, nil
}

// CreatedKey carries a freshly issued backup key.  Plaintext is populated
// exactly once, here; it is never retrievable again.
type CreatedKey struct {
	Plaintext string
	Preview   string
	JourneyID string
}

// CreateKey ensures a journey for the device, generates a backup key, and
// stores only the key's salted hash plus a short preview.  Issuing a new
// key does not revoke previously issued ones.
func (s *Service) CreateKey(ctx context.Context, deviceID string) (CreatedKey, error) {
	j, err := s.EnsureJourney(ctx, deviceID)
	if err != nil {
		return CreatedKey{}, err
	}
	plaintext, err := identity.NewBackupKey()
	if err != nil {
		return CreatedKey{}, err
	}
	preview := identity.KeyPreview(plaintext)
	if err := s.keys.Insert(ctx, model.IdentityKey{
		KeyHash:   identity.KeyHash(plaintext, s.keySalt),
		JourneyID: j.ID,
		Preview:   preview,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return CreatedKey{}, storeErr(err)
	}
	if err := s.links.SetLastKeyPreview(ctx, j.ID, preview); err != nil {
		return CreatedKey{}, storeErr(err)
	}
	return CreatedKey{Plaintext: plaintext, Preview: preview, JourneyID: j.ID}, nil
}

// AttachResult reports the outcome of a backup-key redemption.
type AttachResult struct {
	Journey         model.Journey
	AlreadyAttached bool
	Merge           MergeSummary
	MergeComplete   bool
}

// Attach redeems a backup key for a device.  The attach itself is
// transactional; the follow-up history merge is best-effort.  A merge
// failure never rolls the attach back: identity linking succeeded and the
// caller surfaces the incomplete merge instead.
func (s *Service) Attach(ctx context.Context, key, deviceID string) (AttachResult, error) {
	normalized := identity.NormalizeKey(key)
	if !identity.ValidKeyFormat(normalized) {
		return AttachResult{}, identity.E(identity.KindKeyNotFound, "identity key not found")
	}

	rec, err := s.keys.GetByHash(ctx, identity.KeyHash(normalized, s.keySalt))
	if errors.Is(err, repository.ErrNotFound) {
		return AttachResult{}, identity.E(identity.KindKeyNotFound, "identity key not found")
	}
	if err != nil {
		return AttachResult{}, storeErr(err)
	}

	j, err := s.links.GetJourney(ctx, rec.JourneyID)
	if errors.Is(err, repository.ErrNotFound) {
		// Deletion-on-empty should cascade key cleanup; a dangling key
		// record is a server-side defect, not a user error.
		log.Printf("defect: identity key %s points at missing journey %s", rec.Preview, rec.JourneyID)
		return AttachResult{}, identity.E(identity.KindJourneyNotFound, "journey not found for identity key")
	}
	if err != nil {
		return AttachResult{}, storeErr(err)
	}

	deviceHash := s.hasher.Hash(deviceID)
	already, err := s.links.AttachDevice(ctx, j.ID, deviceID, deviceHash)
	if err != nil {
		return AttachResult{}, storeErr(err)
	}

	result := AttachResult{AlreadyAttached: already, MergeComplete: true}
	if !already && deviceHash != j.PrimaryDeviceHash {
		summary, mergeErr := s.merger.Merge(ctx, deviceID, deviceHash, j.PrimaryDeviceHash)
		result.Merge = summary
		if mergeErr != nil {
			// Attach has committed; report the partial merge instead of
			// failing the redemption.
			log.Printf("journey %s: history merge incomplete for device hash %s: %v", j.ID, deviceHash, mergeErr)
			result.MergeComplete = false
		}
	}

	j, err = s.links.GetJourney(ctx, j.ID)
	if err != nil {
		return result, storeErr(err)
	}
	result.Journey = j
	return result, nil
}

// Status describes a device's journey membership for the client UI.
type Status struct {
	JourneyID       string `json:"journeyId"`
	EffectiveID     string `json:"effectiveDeviceId"`
	IsPrimary       bool   `json:"isPrimary"`
	AttachedDevices int    `json:"attachedDevices"`
	HasHistory      bool   `json:"hasHistory"`
}

// StatusForDevice reports journey id, effective identifier, primary flag,
// attached device count and whether any local history exists for the
// device.  An unlinked device reports itself as its own effective identity.
func (s *Service) StatusForDevice(ctx context.Context, resolver *Resolver, deviceID string) (Status, error) {
	deviceHash := s.hasher.Hash(deviceID)

	st := Status{EffectiveID: deviceID, IsPrimary: true, AttachedDevices: 0}
	res, err := resolver.Resolve(ctx, deviceID)
	if err != nil {
		return Status{}, err
	}
	if res != nil {
		st.JourneyID = res.JourneyID
		st.EffectiveID = res.EffectiveDeviceID
		st.IsPrimary = !res.IsAlias
		st.AttachedDevices = len(res.AttachedDevices)
	}

	count, err := s.content.CountByOwner(ctx, deviceHash, deviceID)
	if err != nil {
		return Status{}, storeErr(err)
	}
	st.HasHistory = count > 0
	return st, nil
}

// Detach removes the device from its journey.  Detaching the last device
// deletes the journey and its keys.  Detaching an unlinked device is a
// no-op.
func (s *Service) Detach(ctx context.Context, deviceID string) error {
	deviceHash := s.hasher.Hash(deviceID)
	link, err := s.links.GetLink(ctx, deviceHash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeErr(err)
	}
	_, err = s.links.DetachDevice(ctx, link.JourneyID, deviceHash)
	return storeErr(err)
}

// CreatedToken carries a freshly issued migration token.
type CreatedToken struct {
	Plaintext string
	ExpiresAt time.Time
}

// CreateMigrationToken issues a single-use, time-boxed token that transfers
// recognition of this device's identity to whichever device redeems it.
func (s *Service) CreateMigrationToken(ctx context.Context, deviceID string) (CreatedToken, error) {
	raw, err := identity.NewMigrationToken()
	if err != nil {
		return CreatedToken{}, err
	}
	now := time.Now().UTC()
	expires := now.Add(s.tokenTTL)
	if err := s.tokens.Insert(ctx, model.MigrationToken{
		TokenHash: identity.TokenHash(raw),
		DeviceID:  deviceID,
		ExpiresAt: expires,
		CreatedAt: now,
	}); err != nil {
		return CreatedToken{}, storeErr(err)
	}
	return CreatedToken{Plaintext: raw, ExpiresAt: expires}, nil
}

// RedeemMigrationToken consumes a token and returns the historical device
// identifier the redeeming client should adopt.  The four failure modes
// (malformed, unknown, already used, expired) stay distinct because the
// user's remedy differs for each.
func (s *Service) RedeemMigrationToken(ctx context.Context, token string) (string, error) {
	if !identity.ValidTokenFormat(token) {
		return "", identity.E(identity.KindTokenInvalidFormat, "migration token is malformed")
	}
	rec, err := s.tokens.Redeem(ctx, identity.TokenHash(token), time.Now().UTC())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "", identity.E(identity.KindTokenNotFound, "migration token not found")
	case errors.Is(err, repository.ErrTokenUsed):
		return "", identity.E(identity.KindTokenAlreadyUsed, "migration token already used")
	case errors.Is(err, repository.ErrTokenExpired):
		return "", identity.E(identity.KindTokenExpired, "migration token expired")
	case err != nil:
		return "", storeErr(err)
	}
	return rec.DeviceID, nil
}
