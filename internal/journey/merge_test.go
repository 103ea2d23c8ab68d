package journey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventline/ventline-api/internal/model"
	"github.com/ventline/ventline-api/internal/repository"
)

func TestMergeStatsArithmetic(t *testing.T) {
	store := newMemStore()
	merger := NewMerger(store, store)
	ctx := context.Background()

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)
	t2 := t0.Add(48 * time.Hour)
	t3 := t0.Add(72 * time.Hour)

	store.stats["primary"] = model.DeviceStats{
		DeviceHash: "primary", MessagesSent: 3, RepliesGiven: 2,
		CreatedAt: t1, LastActiveAt: t3,
	}
	store.stats["secondary"] = model.DeviceStats{
		DeviceHash: "secondary", MessagesSent: 5, RepliesGiven: 1,
		CreatedAt: t0, LastActiveAt: t2,
	}

	summary, err := merger.Merge(ctx, "secondary-raw", "secondary", "primary")
	require.NoError(t, err)
	assert.True(t, summary.StatsMerged)

	merged, err := store.Get(ctx, "primary")
	require.NoError(t, err)
	assert.Equal(t, int64(8), merged.MessagesSent)
	assert.Equal(t, int64(3), merged.RepliesGiven)
	assert.Equal(t, t0, merged.CreatedAt, "earliest creation wins")
	assert.Equal(t, t3, merged.LastActiveAt, "latest activity wins")

	_, err = store.Get(ctx, "secondary")
	assert.ErrorIs(t, err, repository.ErrNotFound, "secondary stats must not resurrect")
}

func TestMergeRepointsBothOwnershipSchemes(t *testing.T) {
	store := newMemStore()
	merger := NewMerger(store, store)
	ctx := context.Background()

	// m1 is matched by the hash query, m2 by the legacy raw-id query, and
	// m3 by both; m3 must be processed exactly once.
	store.messages["m1"] = model.Message{ID: "m1", DeviceHash: "secondary"}
	store.messages["m2"] = model.Message{ID: "m2", DeviceHash: "other", DeviceID: "secondary-raw"}
	store.messages["m3"] = model.Message{ID: "m3", DeviceHash: "secondary", DeviceID: "secondary-raw"}
	store.responses["r1"] = model.Response{ID: "r1", DeviceHash: "secondary"}

	summary, err := merger.Merge(ctx, "secondary-raw", "secondary", "primary")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.ContentUpdated)

	for _, id := range []string{"m1", "m2", "m3"} {
		assert.Equal(t, "primary", store.messages[id].DeviceHash, id)
	}
	assert.Equal(t, "primary", store.responses["r1"].DeviceHash)
}

func TestMergeRerunIsSafeForContent(t *testing.T) {
	store := newMemStore()
	merger := NewMerger(store, store)
	ctx := context.Background()

	store.messages["m1"] = model.Message{ID: "m1", DeviceHash: "secondary"}
	store.stats["secondary"] = model.DeviceStats{DeviceHash: "secondary", MessagesSent: 1}

	first, err := merger.Merge(ctx, "secondary-raw", "secondary", "primary")
	require.NoError(t, err)
	assert.Equal(t, 1, first.ContentUpdated)
	assert.True(t, first.StatsMerged)

	// Re-running finds nothing left under the secondary identity: content
	// was re-pointed and the stats row is gone.  The stats portion cannot
	// be re-applied; it reports false rather than double-counting.
	second, err := merger.Merge(ctx, "secondary-raw", "secondary", "primary")
	require.NoError(t, err)
	assert.Equal(t, 0, second.ContentUpdated)
	assert.False(t, second.StatsMerged)

	merged, err := store.Get(ctx, "primary")
	require.NoError(t, err)
	assert.Equal(t, int64(1), merged.MessagesSent, "counters not doubled")
}

func TestMergeWithNoPrimaryStats(t *testing.T) {
	store := newMemStore()
	merger := NewMerger(store, store)
	ctx := context.Background()

	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store.stats["secondary"] = model.DeviceStats{
		DeviceHash: "secondary", MessagesSent: 4, CreatedAt: created, LastActiveAt: created,
	}

	summary, err := merger.Merge(ctx, "secondary-raw", "secondary", "primary")
	require.NoError(t, err)
	assert.True(t, summary.StatsMerged)

	merged, err := store.Get(ctx, "primary")
	require.NoError(t, err)
	assert.Equal(t, int64(4), merged.MessagesSent)
	assert.Equal(t, created, merged.CreatedAt)
	assert.Equal(t, "primary", merged.DeviceHash)
}

func TestMergeLegacyStatsRow(t *testing.T) {
	store := newMemStore()
	merger := NewMerger(store, store)
	ctx := context.Background()

	// Legacy rows are keyed by the raw identifier, not the hash.
	store.stats["legacy-row"] = model.DeviceStats{
		DeviceHash: "legacy-row", DeviceID: "secondary-raw", Karma: 7,
	}

	summary, err := merger.Merge(ctx, "secondary-raw", "secondary", "primary")
	require.NoError(t, err)
	assert.True(t, summary.StatsMerged)

	merged, err := store.Get(ctx, "primary")
	require.NoError(t, err)
	assert.Equal(t, int64(7), merged.Karma)

	_, err = store.Get(ctx, "legacy-row")
	assert.ErrorIs(t, err, repository.ErrNotFound, "the legacy row is removed, not the hash alias")
}

func TestMergePartialFailureReportsProgress(t *testing.T) {
	store := newMemStore()
	merger := NewMerger(store, store)
	ctx := context.Background()

	store.messages["m1"] = model.Message{ID: "m1", DeviceHash: "secondary"}
	store.failRepoint = true

	summary, err := merger.Merge(ctx, "secondary-raw", "secondary", "primary")
	require.Error(t, err)
	assert.Equal(t, 0, summary.ContentUpdated)
	assert.False(t, summary.StatsMerged)
}
