package journey

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventline/ventline-api/internal/identity"
	"github.com/ventline/ventline-api/internal/model"
	"github.com/ventline/ventline-api/internal/repository"
)

const testKeySalt = "key-salt"

func newTestService(store *memStore) (*Service, *Resolver, *identity.Hasher) {
	hasher := identity.NewHasher("test-salt")
	merger := NewMerger(store, store)
	svc := NewService(store, store, memTokens{s: store}, merger, store, hasher, testKeySalt, 24*time.Hour)
	return svc, NewResolver(store, hasher), hasher
}

func TestEnsureJourneyCreatesSingleton(t *testing.T) {
	store := newMemStore()
	svc, _, hasher := newTestService(store)

	j, err := svc.EnsureJourney(context.Background(), "device-a")
	require.NoError(t, err)

	hash := hasher.Hash("device-a")
	assert.Equal(t, hash, j.ID, "journey id equals the founding device hash")
	assert.Equal(t, "device-a", j.PrimaryDeviceID)
	assert.Equal(t, []string{hash}, j.DeviceHashes)
}

func TestEnsureJourneyConcurrentConvergesOnOne(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)

	const n = 32
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			j, err := svc.EnsureJourney(context.Background(), "brand-new-device")
			if assert.NoError(t, err) {
				ids[i] = j.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.journeys, 1, "exactly one journey document")
	assert.Len(t, store.links, 1, "exactly one device link")
	for _, id := range ids {
		assert.Equal(t, ids[0], id, "all callers observe the same journey")
	}
}

func TestCreateKeyStoresHashNotPlaintext(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)

	created, err := svc.CreateKey(context.Background(), "device-a")
	require.NoError(t, err)
	require.NotEmpty(t, created.Plaintext)

	rec, err := store.GetByHash(context.Background(), identity.KeyHash(created.Plaintext, testKeySalt))
	require.NoError(t, err)
	assert.Equal(t, created.JourneyID, rec.JourneyID)
	assert.NotContains(t, rec.Preview, created.Plaintext[5:9], "preview must not leak beyond the first block")

	j, err := store.GetJourney(context.Background(), created.JourneyID)
	require.NoError(t, err)
	assert.Equal(t, created.Preview, j.LastKeyPreview)
}

func TestCreateKeyReissueKeepsOldKeyRedeemable(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	first, err := svc.CreateKey(ctx, "device-a")
	require.NoError(t, err)
	_, err = svc.CreateKey(ctx, "device-a")
	require.NoError(t, err)

	res, err := svc.Attach(ctx, first.Plaintext, "device-b")
	require.NoError(t, err)
	assert.False(t, res.AlreadyAttached)
}

func TestAttachUnknownKey(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)

	_, err := svc.Attach(context.Background(), "VXK4-9PMR-T2WH-ABCD", "device-b")
	require.Error(t, err)
	assert.Equal(t, identity.KindKeyNotFound, identity.KindOf(err))
	assert.Empty(t, store.journeys, "failed redemption must not create journeys")
	assert.Empty(t, store.links, "failed redemption must not create links")
}

func TestAttachMalformedKeyReportsNotFound(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)

	_, err := svc.Attach(context.Background(), "not a key", "device-b")
	require.Error(t, err)
	assert.Equal(t, identity.KindKeyNotFound, identity.KindOf(err))
}

func TestAttachIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc, _, hasher := newTestService(store)
	ctx := context.Background()

	created, err := svc.CreateKey(ctx, "device-a")
	require.NoError(t, err)

	first, err := svc.Attach(ctx, created.Plaintext, "device-b")
	require.NoError(t, err)
	assert.False(t, first.AlreadyAttached)

	second, err := svc.Attach(ctx, created.Plaintext, "device-b")
	require.NoError(t, err)
	assert.True(t, second.AlreadyAttached)

	count := 0
	for _, h := range second.Journey.DeviceHashes {
		if h == hasher.Hash("device-b") {
			count++
		}
	}
	assert.Equal(t, 1, count, "no duplicate entries in the device set")
}

func TestAttachEndToEnd(t *testing.T) {
	store := newMemStore()
	svc, resolver, hasher := newTestService(store)
	ctx := context.Background()

	hashA := hasher.Hash("device-a")
	hashB := hasher.Hash("device-b")

	// Device B has prior history under its own identity.
	store.stats[hashB] = model.DeviceStats{
		DeviceHash:   hashB,
		MessagesSent: 2,
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		LastActiveAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	store.messages["m1"] = model.Message{ID: "m1", DeviceHash: hashB, Body: "rough day"}

	created, err := svc.CreateKey(ctx, "device-a")
	require.NoError(t, err)

	res, err := svc.Attach(ctx, created.Plaintext, "device-b")
	require.NoError(t, err)
	assert.False(t, res.AlreadyAttached)
	assert.True(t, res.MergeComplete)
	assert.Equal(t, 1, res.Merge.ContentUpdated)
	assert.True(t, res.Merge.StatsMerged)

	// B now resolves to A.
	resolution, err := resolver.Resolve(ctx, "device-b")
	require.NoError(t, err)
	require.NotNil(t, resolution)
	assert.Equal(t, "device-a", resolution.EffectiveDeviceID)
	assert.True(t, resolution.IsAlias)
	assert.Contains(t, resolution.AttachedDevices, hashA)
	assert.Contains(t, resolution.AttachedDevices, hashB)

	// B's stats folded into A and no longer independently retrievable.
	_, err = store.Get(ctx, hashB)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	merged, err := store.Get(ctx, hashA)
	require.NoError(t, err)
	assert.Equal(t, int64(2), merged.MessagesSent)

	// B's message now belongs to A's identity.
	assert.Equal(t, hashA, store.messages["m1"].DeviceHash)
}

func TestAttachSurvivesMergeFailure(t *testing.T) {
	store := newMemStore()
	svc, resolver, _ := newTestService(store)
	ctx := context.Background()

	store.messages["m1"] = model.Message{ID: "m1", DeviceHash: identity.HashDevice("device-b", "test-salt")}

	created, err := svc.CreateKey(ctx, "device-a")
	require.NoError(t, err)

	store.failRepoint = true
	res, err := svc.Attach(ctx, created.Plaintext, "device-b")
	require.NoError(t, err, "merge failure must not fail the attach")
	assert.False(t, res.MergeComplete)

	// Identity linking committed despite the failed merge.
	resolution, err := resolver.Resolve(ctx, "device-b")
	require.NoError(t, err)
	require.NotNil(t, resolution)
	assert.Equal(t, "device-a", resolution.EffectiveDeviceID)
}

func TestAttachMovesDeviceBetweenJourneys(t *testing.T) {
	// A device already linked elsewhere is re-pointed to the new journey.
	// The old journey loses the member and, when that empties it, is
	// deleted along with its keys.  No reconciliation of a still-populated
	// old journey happens; this mirrors the deliberate gap in the design.
	store := newMemStore()
	svc, _, hasher := newTestService(store)
	ctx := context.Background()

	_, err := svc.EnsureJourney(ctx, "device-b")
	require.NoError(t, err)
	oldJourneyID := hasher.Hash("device-b")

	created, err := svc.CreateKey(ctx, "device-a")
	require.NoError(t, err)
	res, err := svc.Attach(ctx, created.Plaintext, "device-b")
	require.NoError(t, err)
	assert.False(t, res.AlreadyAttached)

	_, err = store.GetJourney(ctx, oldJourneyID)
	assert.ErrorIs(t, err, repository.ErrNotFound, "emptied old journey is deleted")

	link, err := store.GetLink(ctx, hasher.Hash("device-b"))
	require.NoError(t, err)
	assert.Equal(t, created.JourneyID, link.JourneyID)
}

func TestDetachLastDeviceDeletesJourneyAndKeys(t *testing.T) {
	store := newMemStore()
	svc, _, hasher := newTestService(store)
	ctx := context.Background()

	created, err := svc.CreateKey(ctx, "device-a")
	require.NoError(t, err)

	require.NoError(t, svc.Detach(ctx, "device-a"))

	_, err = store.GetJourney(ctx, created.JourneyID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.GetLink(ctx, hasher.Hash("device-a"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, store.keys, "journey deletion cascades to its keys")
}

func TestDetachUnlinkedDeviceIsNoop(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	assert.NoError(t, svc.Detach(context.Background(), "never-seen"))
}

func TestStatusForDevice(t *testing.T) {
	store := newMemStore()
	svc, resolver, hasher := newTestService(store)
	ctx := context.Background()

	st, err := svc.StatusForDevice(ctx, resolver, "device-a")
	require.NoError(t, err)
	assert.Empty(t, st.JourneyID)
	assert.Equal(t, "device-a", st.EffectiveID)
	assert.True(t, st.IsPrimary)
	assert.False(t, st.HasHistory)

	store.messages["m1"] = model.Message{ID: "m1", DeviceHash: hasher.Hash("device-a")}
	created, err := svc.CreateKey(ctx, "device-a")
	require.NoError(t, err)
	_, err = svc.Attach(ctx, created.Plaintext, "device-b")
	require.NoError(t, err)

	st, err = svc.StatusForDevice(ctx, resolver, "device-b")
	require.NoError(t, err)
	assert.Equal(t, created.JourneyID, st.JourneyID)
	assert.Equal(t, "device-a", st.EffectiveID)
	assert.False(t, st.IsPrimary)
	assert.Equal(t, 2, st.AttachedDevices)
}

func TestMigrationTokenLifecycle(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	created, err := svc.CreateMigrationToken(ctx, "old-device")
	require.NoError(t, err)

	deviceID, err := svc.RedeemMigrationToken(ctx, created.Plaintext)
	require.NoError(t, err)
	assert.Equal(t, "old-device", deviceID)

	_, err = svc.RedeemMigrationToken(ctx, created.Plaintext)
	require.Error(t, err)
	assert.Equal(t, identity.KindTokenAlreadyUsed, identity.KindOf(err))
}

func TestMigrationTokenExpired(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	created, err := svc.CreateMigrationToken(ctx, "old-device")
	require.NoError(t, err)

	// Age the token past its window.
	hash := identity.TokenHash(created.Plaintext)
	tok := store.tokens[hash]
	tok.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	store.tokens[hash] = tok

	_, err = svc.RedeemMigrationToken(ctx, created.Plaintext)
	require.Error(t, err)
	assert.Equal(t, identity.KindTokenExpired, identity.KindOf(err))
}

func TestMigrationTokenDistinctFailures(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	_, err := svc.RedeemMigrationToken(ctx, "definitely-not-hex")
	assert.Equal(t, identity.KindTokenInvalidFormat, identity.KindOf(err))

	unknown, err := identity.NewMigrationToken()
	require.NoError(t, err)
	_, err = svc.RedeemMigrationToken(ctx, unknown)
	assert.Equal(t, identity.KindTokenNotFound, identity.KindOf(err))
}
