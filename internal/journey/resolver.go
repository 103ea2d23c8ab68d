package journey

import (
	"context"
	"errors"

	"github.com/ventline/ventline-api/internal/identity"
	"github.com/ventline/ventline-api/internal/repository"
)

// Resolution describes where a device's activity resolves to.  For a device
// linked into a journey the effective identifier is the journey's primary;
// for an unlinked device the Resolver returns nil and callers use the raw
// identifier as-is.
type Resolution struct {
	EffectiveDeviceID   string   `json:"effectiveDeviceId"`
	EffectiveDeviceHash string   `json:"effectiveDeviceHash"`
	JourneyID           string   `json:"journeyId"`
	IsAlias             bool     `json:"isAlias"`
	AttachedDevices     []string `json:"attachedDevices"` // identity hashes, primary included
}

// Resolver answers "given this raw device id, whose identity is this?".
// It is read-only and safe on every request: no journey is created here,
// journey creation is an explicit act (ensure, key issue, attach).
type Resolver struct {
	links  LinkStore
	hasher *identity.Hasher
}

// NewResolver builds a Resolver over a link store and hasher.
func NewResolver(links LinkStore, hasher *identity.Hasher) *Resolver {
	return &Resolver{links: links, hasher: hasher}
}

// Resolve looks up the device's journey membership.  It returns (nil, nil)
// when the device is not part of any journey.  A link pointing at a missing
// journey means a cleanup step was skipped somewhere; that is surfaced as a
// tagged server-side error, never treated as a user mistake.
func (r *Resolver) Resolve(ctx context.Context, rawDeviceID string) (*Resolution, error) {
	deviceHash := r.hasher.Hash(rawDeviceID)

	link, err := r.links.GetLink(ctx, deviceHash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}

	j, err := r.links.GetJourney(ctx, link.JourneyID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, identity.E(identity.KindJourneyNotFound,
			"device link points at missing journey "+link.JourneyID)
	}
	if err != nil {
		return nil, storeErr(err)
	}

	return &Resolution{
		EffectiveDeviceID:   j.PrimaryDeviceID,
		EffectiveDeviceHash: j.PrimaryDeviceHash,
		JourneyID:           j.ID,
		IsAlias:             j.PrimaryDeviceID != rawDeviceID,
		AttachedDevices:     j.DeviceHashes,
	}, nil
}

// storeErr tags storage-layer resource exhaustion as retriable-later and
// passes everything else through unchanged.
func storeErr(err error) error {
	if repository.IsResourceExhausted(err) {
		return identity.E(identity.KindStoreBusy, "identity store temporarily unavailable")
	}
	return err
}
