package journey

import (
	"context"
	"errors"

	"github.com/ventline/ventline-api/internal/model"
	"github.com/ventline/ventline-api/internal/repository"
)

// MergeSummary is returned to the user after a device joins a journey, so
// the UI can confirm "reunited N of your messages".
type MergeSummary struct {
	ContentUpdated int  `json:"contentUpdated"`
	StatsMerged    bool `json:"statsMerged"`
}

// Merger folds a secondary device's history into the journey's primary
// identity after an attach.  Content re-pointing is idempotent: a record
// already owned by the primary is skipped, so re-running after a partial
// failure cannot double-count.  The stats fold is not re-runnable once the
// secondary stats row has been deleted; in that case a re-run simply
// reports StatsMerged=false.
type Merger struct {
	content ContentStore
	stats   StatsStore
}

// NewMerger builds a Merger over the content and stats stores.
func NewMerger(content ContentStore, stats StatsStore) *Merger {
	return &Merger{content: content, stats: stats}
}

// Merge re-points every content record owned by the secondary identity
// (hash-keyed or legacy raw-id-keyed) to the primary hash, then folds the
// secondary's counters into the primary's stats row and deletes the
// secondary row.  Each step is a per-record update; there is no global
// transaction, and callers must tolerate a partial merge (the attach that
// triggered it has already committed).
func (m *Merger) Merge(ctx context.Context, secondaryDeviceID, secondaryHash, primaryHash string) (MergeSummary, error) {
	var summary MergeSummary

	updated, err := m.repointContent(ctx, secondaryDeviceID, secondaryHash, primaryHash)
	summary.ContentUpdated = updated
	if err != nil {
		return summary, err
	}

	merged, err := m.mergeStats(ctx, secondaryDeviceID, secondaryHash, primaryHash)
	summary.StatsMerged = merged
	return summary, err
}

func (m *Merger) repointContent(ctx context.Context, secondaryDeviceID, secondaryHash, primaryHash string) (int, error) {
	updated := 0

	// A record can match both the hash query and the legacy raw-id query;
	// the processed set guarantees it is re-pointed once.
	processed := make(map[string]bool)

	byHash, err := m.content.MessageIDsByOwnerHash(ctx, secondaryHash)
	if err != nil {
		return updated, err
	}
	byLegacy, err := m.content.MessageIDsByLegacyID(ctx, secondaryDeviceID)
	if err != nil {
		return updated, err
	}
	for _, id := range append(byHash, byLegacy...) {
		if processed[id] {
			continue
		}
		processed[id] = true
		if err := m.content.RepointMessage(ctx, id, primaryHash); err != nil {
			return updated, err
		}
		updated++
	}

	processed = make(map[string]bool)
	byHash, err = m.content.ResponseIDsByOwnerHash(ctx, secondaryHash)
	if err != nil {
		return updated, err
	}
	byLegacy, err = m.content.ResponseIDsByLegacyID(ctx, secondaryDeviceID)
	if err != nil {
		return updated, err
	}
	for _, id := range append(byHash, byLegacy...) {
		if processed[id] {
			continue
		}
		processed[id] = true
		if err := m.content.RepointResponse(ctx, id, primaryHash); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func (m *Merger) mergeStats(ctx context.Context, secondaryDeviceID, secondaryHash, primaryHash string) (bool, error) {
	secondary, err := m.stats.GetWithLegacyFallback(ctx, secondaryHash, secondaryDeviceID)
	if errors.Is(err, repository.ErrNotFound) {
		// Nothing to fold; also the state after a completed earlier merge.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	primary, err := m.stats.Get(ctx, primaryHash)
	if errors.Is(err, repository.ErrNotFound) {
		primary = model.DeviceStats{DeviceHash: primaryHash}
	} else if err != nil {
		return false, err
	}

	merged := foldStats(primary, secondary)
	merged.DeviceHash = primaryHash
	if err := m.stats.Upsert(ctx, merged); err != nil {
		return false, err
	}
	// Delete keys off the row the fallback found, which may be the legacy
	// raw-id row rather than the hash we looked up.
	if err := m.stats.Delete(ctx, secondary.DeviceHash); err != nil {
		return false, err
	}
	return true, nil
}

// foldStats combines two stats rows: counters sum, creation takes the
// earliest timestamp, activity takes the latest.
func foldStats(primary, secondary model.DeviceStats) model.DeviceStats {
	out := primary
	out.MessagesSent += secondary.MessagesSent
	out.RepliesGiven += secondary.RepliesGiven
	out.RepliesReceived += secondary.RepliesReceived
	out.Karma += secondary.Karma

	if out.CreatedAt.IsZero() || (!secondary.CreatedAt.IsZero() && secondary.CreatedAt.Before(out.CreatedAt)) {
		out.CreatedAt = secondary.CreatedAt
	}
	if secondary.LastActiveAt.After(out.LastActiveAt) {
		out.LastActiveAt = secondary.LastActiveAt
	}
	if secondary.LastRepliesSeenAt.After(out.LastRepliesSeenAt) {
		out.LastRepliesSeenAt = secondary.LastRepliesSeenAt
	}
	return out
}
